package main

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/escrow"
	"marketplace-core/internal/event"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/handler"
	"marketplace-core/internal/ledger"
	"marketplace-core/internal/marketplace"
	"marketplace-core/internal/model"
	"marketplace-core/internal/replay"
	"marketplace-core/internal/server"
	"marketplace-core/internal/service"
	"marketplace-core/internal/service/mq"
	"marketplace-core/internal/worker"

	"marketplace-core/pkg/cache"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/config"
	"marketplace-core/pkg/database"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/utils/lock"

	_ "marketplace-core/docs/swagger"
)

// stopFunc 把取消函数适配为 server.Background
type stopFunc func()

func (f stopFunc) Stop() { f() }

// @title Marketplace Core API
// @version 1.0
// @description Gasless mint / rent relay, rental escrow and staking fee tiers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey RelayerKey
// @in header
// @name X-Relayer-Key

// @securityDefinitions.apikey AdminToken
// @in header
// @name Authorization
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger / Metrics
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	defer logger.Sync()
	monitor.Init()

	bg, cancel := context.WithCancel(context.Background())
	background := []server.Background{stopFunc(cancel)}

	// 2. 数据库 (可选)
	var db *gorm.DB
	if cfg.DB.Driver == "postgres" {
		var err error
		db, err = database.ConnectPostgres(database.DSN(cfg.DB), cfg.App.Env)
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		if cfg.DB.AutoMigrate {
			// 仅开发环境使用，生产环境走 cmd/migrate
			logger.Warn("⚠️  使用 GORM AutoMigrate 同步表结构")
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("AutoMigrate 失败", zap.Error(err))
			}
		}
	} else {
		logger.Warn("⚠️  使用内存存储，重启后租赁与已消费请求将丢失 (仅限开发环境)")
	}

	// 3. Redis (可选)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rdb, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
	}

	// 4. 消息队列
	var producer mq.Producer
	var consumer mq.Consumer
	switch {
	case cfg.Redis.MQType == "kafka":
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		producer = mq.NewKafkaProducer(cfg.Kafka.Brokers)
		consumer = mq.NewKafkaConsumer(cfg.Kafka.Brokers, "marketplace_settlement_group")
	case rdb != nil:
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
		consumer = mq.NewRedisConsumer(rdb, "marketplace_settlement", "settlement-0")
	default:
		logger.Info("使用进程内消息队列...")
		broker := mq.NewMemoryBroker(1024)
		producer, consumer = broker, broker
	}
	defer producer.Close()
	defer consumer.Close()

	// 5. 存储: 租赁、已消费请求、事件
	clk := clock.System
	st := newStorage(cfg, db, rdb, producer, clk)
	if st.relay != nil {
		go st.relay.Start(bg)
	}

	// 6. 协作方: 代币账本、支付资产、质押、铸造权限
	tokens := ledger.NewMemoryTokenLedger()
	payments := newPaymentRegistry(cfg)
	staking := newStaking(bg, cfg, rdb)
	minters := ledger.NewMemoryMinterRegistry()
	for _, g := range cfg.Marketplace.Minters {
		minters.Grant(common.HexToAddress(g.Collection), common.HexToAddress(g.Account))
	}

	table, err := fee.TableFromConfig(cfg.Fees)
	if err != nil {
		logger.Fatal("费率表配置无效", zap.Error(err))
	}

	core := marketplace.NewCore(marketplace.Config{
		Address:      common.HexToAddress(cfg.Marketplace.Address),
		FeeRecipient: common.HexToAddress(cfg.Marketplace.FeeRecipient),
	}, marketplace.Deps{
		Tokens:   tokens,
		Payments: payments,
		Staking:  staking,
		Minters:  minters,
		Fees:     fee.NewResolver(table),
		Escrow:   escrow.NewLedger(st.store, tokens, st.locker, clk),
		Replay:   st.guard,
		Events:   st.events,
		Clock:    clk,
	})

	// 7. 到期回收: asynq 精确回收 + cron 兜底扫描
	if rdb != nil {
		workerServer := worker.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Settlement.WorkerConcurrency, core)
		workerServer.Start()
		background = append(background, workerServer)

		workerClient := worker.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer workerClient.Close()
		scheduler := service.NewRentalScheduler(consumer, workerClient)
		if err := scheduler.Start(bg); err != nil {
			logger.Error("RentalScheduler 启动失败", zap.Error(err))
		}
	}

	cronService := service.NewCronService(cfg.Settlement.SweepSpec, st.distLck, cfg.Settlement.LockTTL,
		cfg.Settlement.BatchSize, core)
	if err := cronService.Start(); err != nil {
		logger.Fatal("Cron 启动失败", zap.Error(err))
	}
	background = append(background, cronService)

	// 8. HTTP
	r := server.NewHTTPRouter(core, server.RouterConfig{
		Relayers:   relayerKeys(cfg.Marketplace.Relayers),
		AdminToken: cfg.Marketplace.AdminToken,
		Probes:     readinessProbes(db, rdb),

		CORSOrigins: cfg.App.CORSOrigins,
	})

	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r, background...)

	// 运行 (阻塞)
	app.Run()

	// 9. 退出后资源清理
	if db != nil {
		logger.Info("正在关闭数据库连接...")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("系统已退出")
}

// storage 按配置选择的持久化后端
type storage struct {
	store   escrow.Store
	guard   replay.Guard
	events  event.Publisher
	distLck lock.DistributedLock
	locker  lock.KeyLocker
	relay   *service.RelayService
}

// newStorage db 优先，其次 redis，都没有时退回内存实现
func newStorage(cfg config.Config, db *gorm.DB, rdb *redis.Client, producer mq.Producer, clk clock.Clock) storage {
	var st storage
	if db != nil {
		st.store = escrow.NewGormStore(db)
		st.guard = replay.NewGormGuard(db)
		// 业务提交后写 outbox，由 Relay 服务异步投递；写入失败的事件由 cron 扫描兜底回收
		st.events = event.NewOutboxPublisher(db)
		st.relay = service.NewRelayService(db, producer)
	} else {
		st.store = escrow.NewMemoryStore()
		st.guard = replay.NewMemoryGuard()
		st.events = event.NewProducerPublisher(producer)
	}
	if rdb != nil {
		if db == nil {
			st.guard = replay.NewRedisGuard(rdb, cfg.Marketplace.ReplayGrace, clk)
		}
		st.distLck = lock.NewRedisLock(rdb)
		st.locker = lock.NewDistributedKeyLocker(st.distLck, cfg.Settlement.LockTTL, 5*time.Second)
	} else {
		st.distLck = lock.NewMemoryLock()
		st.locker = lock.NewMemoryKeyLocker()
	}
	return st
}

func readinessProbes(db *gorm.DB, rdb *redis.Client) map[string]handler.Probe {
	probes := make(map[string]handler.Probe)
	if db != nil {
		probes["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return probes
}

func relayerKeys(keys []config.RelayerKey) map[string]common.Address {
	out := make(map[string]common.Address, len(keys))
	for _, k := range keys {
		if k.Key == "" || !common.IsHexAddress(k.Address) {
			logger.Warn("忽略无效的 relayer 配置", zap.String("address", k.Address))
			continue
		}
		out[k.Key] = common.HexToAddress(k.Address)
	}
	if len(out) == 0 {
		logger.Warn("⚠️  未配置任何 relayer，元交易接口将拒绝所有请求")
	}
	return out
}

// devRelayerFunds 开发环境给每个 relayer 的初始余额 (代币单位)
const devRelayerFunds = "1000000"

func newPaymentRegistry(cfg config.Config) *ledger.MemoryPaymentRegistry {
	registry := ledger.NewMemoryPaymentRegistry()
	market := common.HexToAddress(cfg.Marketplace.Address)
	funds, _ := fee.ToBaseUnits(devRelayerFunds)

	for _, a := range cfg.Marketplace.PaymentAssets {
		if !common.IsHexAddress(a) {
			logger.Warn("忽略无效的支付资产地址", zap.String("asset", a))
			continue
		}
		asset := ledger.NewMemoryPaymentAsset()
		if strings.EqualFold(cfg.App.Env, "development") {
			for _, r := range cfg.Marketplace.Relayers {
				holder := common.HexToAddress(r.Address)
				asset.Credit(holder, new(big.Int).Set(funds))
				asset.Approve(holder, market, new(big.Int).Set(funds))
			}
		}
		registry.Register(common.HexToAddress(a), asset)
		logger.Info("注册支付资产", zap.String("asset", a))
	}
	return registry
}

// newStaking 配置了 RPC 时读链上质押合约，外面包一层多级缓存
func newStaking(ctx context.Context, cfg config.Config, rdb *redis.Client) ledger.Staking {
	if cfg.Chain.RpcUrl == "" || !common.IsHexAddress(cfg.Chain.StakingContract) {
		logger.Warn("⚠️  未配置质押合约，所有账户按 0 质押计费")
		return ledger.NewMemoryStaking()
	}

	client, err := chain.Dial(ctx, cfg.Chain.RpcUrl)
	if err != nil {
		logger.Fatal("连接以太坊节点失败", zap.Error(err))
	}
	inner := chain.NewEthStaking(client, common.HexToAddress(cfg.Chain.StakingContract))

	// L1: Memory, L2: Redis
	var c cache.Cache = cache.NewMemoryCache(cfg.Chain.StakingCacheTTL, 5*time.Minute)
	if rdb != nil {
		c = cache.NewMultiLevelCache(c, cache.NewRedisCache(rdb, "marketplace:"))
	}
	return chain.NewCachedStaking(inner, c, cfg.Chain.StakingCacheTTL)
}
