package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PPSocial/data/database/mgo/mongoutil"
	"PPSocial/global/config"
	"PPSocial/logger"
	"PPSocial/module/chat/message"
	poststore "PPSocial/module/post/store"
	userstore "PPSocial/module/user/store"
	"PPSocial/router"
	"PPSocial/service/kafka"
	"PPSocial/service/mgo"
	"PPSocial/service/natsx"
	"PPSocial/service/rpc"
	"PPSocial/service/storage"
	redisx "PPSocial/service/storage/redis"
	"PPSocial/tools/errs"
	"PPSocial/tools/ids"
	"PPSocial/tools/security"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.App.LogLevel)
	ids.SetNodeID(cfg.App.NodeID)
	config.Watch(cfgPath, func(c *config.Config) { logger.SetLevel(c.App.LogLevel) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// 后台组件在 HTTP 关闭后才停
	bg, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// Redis：会话 + 在线状态
	if err := redisx.InitRedis(redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		return err
	}
	defer func() { _ = redisx.CloseRedis() }()
	rdb := redisx.GetRedis()

	// Mongo：每次（重）连上都确保索引
	mgo.OnReady(message.EnsureIndexes)
	mgo.OnReady(userstore.EnsureIndexes)
	mgo.OnReady(poststore.EnsureIndexes)
	mgo.StartAsync(bg, &mongoutil.Config{
		Uri:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MaxRetry:    cfg.Mongo.MaxRetry,
		AppName:     cfg.App.Name,
	})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = mgo.WaitReady(waitCtx, mgo.Manager())
	cancel()
	if err != nil {
		return err
	}
	db := mgo.GetDB()

	issuer, err := security.NewIssuer(security.Options{
		Secret: []byte(cfg.Auth.JWTSecret),
		Alg:    "HS256",
		TTL:    cfg.Auth.CredentialTTL,
	})
	if err != nil {
		return err
	}

	deps := router.Deps{
		Sessions:      storage.NewSessionStore(rdb, cfg.Auth.SessionTTL),
		Users:         userstore.NewMongoRepo(db),
		Posts:         poststore.NewMongoRepo(db),
		Conversations: message.NewMongoStore(db),
		Issuer:        issuer,
		Presence:      storage.NewOnlineStore(rdb, cfg.App.NodeID, storage.DefaultPresenceTTL),
	}

	var (
		broker  *natsx.Broker
		natsCli *natsx.NatsxClient
	)
	if cfg.NATS.Enabled {
		natsCli, err = natsx.NewNatsxClient(natsx.NatsxConfig{
			Servers:       cfg.NATS.Servers,
			Name:          fmt.Sprintf("%s-%d", cfg.NATS.Name, cfg.App.NodeID),
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			return err
		}
		broker = natsx.NewBroker(bg, natsCli, cfg.NATS.SubjectPrefix, cfg.App.NodeID)
		deps.Broker = broker
	}

	var sink *kafka.EventSink
	if cfg.Kafka.Enabled {
		sink, err = kafka.NewEventSink(kafka.Config{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			Version:         cfg.Kafka.Version,
			AutoCreateTopic: true,
		})
		if err != nil {
			// 事件下游不影响私信主流程
			logger.Warn("kafka sink disabled", zap.Error(err))
		} else {
			deps.Sink = sink
		}
	}

	app, err := router.Setup(cfg, deps)
	if err != nil {
		return err
	}

	health := rpc.NewHealthServer(rpc.HealthConfig{
		Addr:    fmt.Sprintf(":%d", cfg.App.GrpcPort),
		Service: cfg.App.Name,
	})
	health.AddCheck("mongo", func(ctx context.Context) error {
		d, ok := mgo.TryGetDB()
		if !ok {
			return mongo.ErrClientDisconnected
		}
		return d.Client().Ping(ctx, nil)
	})
	health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	if natsCli != nil {
		health.AddCheck("nats", func(context.Context) error {
			if !natsCli.Connected() {
				return errs.New("nats disconnected")
			}
			return nil
		})
	}
	if _, err := health.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.Int64("node", cfg.App.NodeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	health.Stop()
	_ = srv.Shutdown(shutdownCtx)
	app.Router.Directory().CloseAll()
	if broker != nil {
		_ = broker.Close()
	}
	if sink != nil {
		_ = sink.Close()
	}
	return err
}
