package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupchat/internal/config"
	"groupchat/internal/pkg"
	"groupchat/internal/repository"
	badgerrepo "groupchat/internal/repository/badger"
	"groupchat/internal/repository/mysql"
	redisrepo "groupchat/internal/repository/redis"
	"groupchat/internal/router"
	"groupchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config failed")
	}

	log := pkg.NewLogger(cfg.LogLevel, cfg.AppEnv)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

// run 装配依赖并阻塞到收到退出信号；返回前按打开的逆序关闭资源
func run(cfg *config.Config, log *logrus.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.WithError(err).Warn("close resource failed")
			}
		}
	}()

	// 用户表（mysql / sqlite）
	db, err := mysql.InitDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("init user database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB)
	}
	users := mysql.NewUserRepository(db)

	// 群组与登录态存储
	var (
		groups repository.GroupRepository
		tokens repository.TokenRepository
	)
	switch cfg.StoreDriver {
	case config.StoreBadger:
		bdb, err := badgerrepo.Open(cfg.BadgerPath, log)
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		closers = append(closers, bdb)
		groups = badgerrepo.NewGroupRepository(bdb, cfg.RedisKeyPrefix)
		tokens = badgerrepo.NewTokenRepository(bdb, cfg.RedisKeyPrefix)
	default:
		rdb, err := redisrepo.Init(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rdb)
		groups = redisrepo.NewGroupRepository(rdb, cfg.RedisKeyPrefix)
		tokens = redisrepo.NewTokenRepository(rdb, cfg.RedisKeyPrefix)
	}
	log.WithField("store", cfg.StoreDriver).Info("group store ready")

	var publishers service.MultiPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, log)
		closers = append(closers, producer)
		publishers = append(publishers, service.NewKafkaPublisher(producer))
		log.WithField("topic", cfg.KafkaTopic).Info("publishing group events to kafka")
	}
	if cfg.NatsURL != "" {
		nc, err := pkg.NewNatsClient(pkg.NatsConfig{URL: cfg.NatsURL, MaxReconnects: -1, ReconnectWait: 2 * time.Second}, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, nc)
		publishers = append(publishers, service.NewNatsPublisher(nc, cfg.NatsSubjectPrefix))
		log.WithField("prefix", cfg.NatsSubjectPrefix).Info("publishing group events to nats")
	}
	var events service.EventPublisher = service.NopPublisher{}
	if len(publishers) > 0 {
		events = publishers
	}

	var notifier service.InviteNotifier = service.NopNotifier{}
	smtp := pkg.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	if smtp.Enabled() {
		notifier = service.NewMailNotifier(smtp, users)
	}

	issuer := pkg.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	userSvc := service.NewUserService(users, tokens, issuer, log)
	groupSvc := service.NewGroupService(groups, users, events, notifier, log)

	r := router.InitRouter(router.Options{
		Users:       userSvc,
		Groups:      groupSvc,
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
