package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/wyfcoding/pkg/app"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/middleware"

	stakingapp "github.com/wyfcoding/stakingyield/internal/staking/application"
	stakingdomain "github.com/wyfcoding/stakingyield/internal/staking/domain"
	stakingidgen "github.com/wyfcoding/stakingyield/internal/staking/infrastructure/idgen"
	stakingmysql "github.com/wyfcoding/stakingyield/internal/staking/infrastructure/persistence/mysql"
	stakinghttp "github.com/wyfcoding/stakingyield/internal/staking/interfaces/http"
	tokenapp "github.com/wyfcoding/stakingyield/internal/token/application"
	tokendomain "github.com/wyfcoding/stakingyield/internal/token/domain"
	tokenmysql "github.com/wyfcoding/stakingyield/internal/token/infrastructure/persistence/mysql"
	tokenhttp "github.com/wyfcoding/stakingyield/internal/token/interfaces/http"
	vaultapp "github.com/wyfcoding/stakingyield/internal/vault/application"
	vaultdomain "github.com/wyfcoding/stakingyield/internal/vault/domain"
	vaultmysql "github.com/wyfcoding/stakingyield/internal/vault/infrastructure/persistence/mysql"
	"github.com/wyfcoding/stakingyield/internal/vault/infrastructure/yieldsource"
	vaulthttp "github.com/wyfcoding/stakingyield/internal/vault/interfaces/http"
)

// BootstrapName 服务唯一标识
const BootstrapName = "stakingd"

// Config 服务扩展配置
type Config struct {
	config.Config `mapstructure:",squash"`
	Staking       struct {
		Admin string `mapstructure:"admin" toml:"admin"`
	} `mapstructure:"staking" toml:"staking"`
}

// assetClassSpec 单个资产类别实例的固定参数。
// eth 与 stable 共用同一套引擎逻辑，仅最小质押额不同。
type assetClassSpec struct {
	class    string
	minStake decimal.Decimal
}

var assetClasses = []assetClassSpec{
	{class: "eth", minStake: decimal.New(1, 16)},
	{class: "stable", minStake: decimal.New(1, 18)},
}

// AppContext 应用上下文
type AppContext struct {
	Config         *Config
	Engines        map[string]*stakingapp.Engine
	Vaults         map[string]*vaultapp.VaultService
	StakingHandler *stakinghttp.Handler
	VaultHandler   *vaulthttp.Handler
	TokenHandler   *tokenhttp.Handler
	Metrics        *metrics.Metrics
}

func main() {
	if err := app.NewBuilder[*Config, *AppContext](BootstrapName).
		WithConfig(&Config{}).
		WithService(initService).
		WithGRPC(registerGRPC).
		WithGin(registerGin).
		WithGinMiddleware(
			middleware.CORS(),
			middleware.TimeoutMiddleware(30*time.Second),
		).
		Build().
		Run(); err != nil {
		slog.Error("service bootstrap failed", "error", err)
	}
}

func registerGRPC(s *grpc.Server, ctx *AppContext) {
	// 注册 gRPC 服务实现 (待 proto 定稿后接入)
	// pb.RegisterStakingServiceServer(s, interfaces.NewGRPCServer(ctx.Engines))
}

func registerGin(e *gin.Engine, ctx *AppContext) {
	if ctx.Config.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := e.Group("/api/v1")
	{
		ctx.StakingHandler.RegisterRoutes(api)
		ctx.VaultHandler.RegisterRoutes(api)
		ctx.TokenHandler.RegisterRoutes(api)
	}
}

func initService(cfg *Config, m *metrics.Metrics) (*AppContext, func(), error) {
	bootLog := slog.With("module", "bootstrap")
	logger := logging.Default()

	// 1. 数据库
	dbWrapper, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	db := dbWrapper.RawDB()

	// 自动迁移
	if err := db.AutoMigrate(
		&stakingdomain.Position{},
		&stakingdomain.PoolState{},
		&vaultdomain.VaultState{},
		&tokendomain.Token{},
		&tokendomain.Balance{},
		&tokendomain.Allowance{},
		&yieldsource.Accrual{},
		&outbox.Message{},
	); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	// 2. 消息队列 & Outbox
	producer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, m)
	outboxMgr := outbox.NewManager(db, logger.Logger)
	outboxProc := outbox.NewProcessor(outboxMgr, func(ctx context.Context, topic, key string, payload []byte) error {
		return producer.PublishToTopic(ctx, topic, []byte(key), payload)
	}, 100, 5*time.Second)
	outboxProc.Start()
	publisher := outbox.NewPublisher(outboxMgr)

	// 3. 仓储与账本
	txManager := stakingmysql.NewTransactionManager(db)
	poolRepo := stakingmysql.NewGormPoolStateRepository(db)
	positionRepo := stakingmysql.NewGormPositionRepository(db)
	vaultRepo := vaultmysql.NewGormVaultStateRepository(db)
	allocator := stakingidgen.NewSnowflakeAllocator()

	ledgerSvc := tokenapp.NewLedgerService(
		tokenmysql.NewGormTokenRepository(db),
		tokenmysql.NewGormBalanceRepository(db),
		tokenmysql.NewGormAllowanceRepository(db),
		txManager,
		logger.Logger,
	)

	// 4. 每个资产类别一套 引擎 + 金库 + 三个币种
	engines := make(map[string]*stakingapp.Engine, len(assetClasses))
	vaults := make(map[string]*vaultapp.VaultService, len(assetClasses))

	for _, spec := range assetClasses {
		// 托管账户同时充当金库账户与币种管理账户，
		// 闪电贷与收益兑付都从同一池内资金出账
		custody := "custody:" + spec.class
		baseDenom := spec.class
		shareDenom := "s" + spec.class
		creditDenom := "y" + spec.class

		ctx := context.Background()
		for _, denom := range []string{baseDenom, shareDenom, creditDenom} {
			if err := ledgerSvc.CreateToken(ctx, denom, custody); err != nil && !errors.Is(err, tokendomain.ErrTokenExists) {
				return nil, nil, fmt.Errorf("failed to register denom %s: %w", denom, err)
			}
		}

		engine := stakingapp.NewEngine(
			stakingapp.EngineConfig{
				AssetClass: spec.class,
				MinStake:   spec.minStake,
				Admin:      cfg.Staking.Admin,
			},
			poolRepo,
			positionRepo,
			allocator,
			tokenapp.NewDenomLedger(ledgerSvc, baseDenom),
			tokenapp.NewDenomLedger(ledgerSvc, shareDenom),
			tokenapp.NewDenomLedger(ledgerSvc, creditDenom),
			txManager,
			publisher,
			logger.Logger,
		)

		accrual := yieldsource.NewAccrualSource(db, ledgerSvc, baseDenom, custody)
		vault := vaultapp.NewVaultService(
			spec.class,
			cfg.Staking.Admin,
			vaultRepo,
			tokenapp.NewDenomLedger(ledgerSvc, baseDenom),
			accrual,
			txManager,
			publisher,
			logger.Logger,
		)

		engine.BindVault(vault)
		vault.BindPool(engine)

		engines[spec.class] = engine
		vaults[spec.class] = vault
	}

	queryService := stakingapp.NewQueryService(poolRepo, positionRepo, logger.Logger)

	// 5. Handler
	stakingHandler := stakinghttp.NewHandler(engines, queryService)
	vaultHandler := vaulthttp.NewHandler(vaults)
	tokenHandler := tokenhttp.NewHandler(ledgerSvc)

	cleanup := func() {
		bootLog.Info("shutting down...")
		outboxProc.Stop()
		if producer != nil {
			producer.Close()
		}
		if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
			sqlDB.Close()
		}
	}

	return &AppContext{
		Config:         cfg,
		Engines:        engines,
		Vaults:         vaults,
		StakingHandler: stakingHandler,
		VaultHandler:   vaultHandler,
		TokenHandler:   tokenHandler,
		Metrics:        m,
	}, cleanup, nil
}
