package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "PlayGrid/global/config"
	"PlayGrid/logger"
	mid "PlayGrid/middleware"
	"PlayGrid/service/dispatcher/kafka"
	"PlayGrid/service/gateway"
	"PlayGrid/service/natsx"
	"PlayGrid/service/storage"
	mongostore "PlayGrid/service/storage/mongo"
	redisstore "PlayGrid/service/storage/redis"
	"PlayGrid/tools/security"
)

func main() {
	config.Load()
	cfg := config.Global
	defer logger.Sync()

	// token verification: the gateway only verifies, issuance lives in the
	// login service
	jwtOpts := security.DefaultOptions(cfg.JWTSecret)
	verifier := gateway.TokenVerifierFunc(func(token string) (*security.Identity, error) {
		return security.Verify(jwtOpts, token)
	})

	ctx := context.Background()
	db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	if err != nil {
		logger.Fatalf("mongo connect failed: %v", err)
	}
	store, err := mongostore.NewMessageStore(ctx, db)
	if err != nil {
		logger.Fatalf("message store init failed: %v", err)
	}

	var opts []gateway.Option

	if err := redisstore.Init(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Warnf("redis unavailable, presence mirror disabled: %v", err)
	} else {
		defer func() { _ = redisstore.Close() }()
		opts = append(opts, gateway.WithPresence(
			storage.NewPresence(redisstore.Client(), cfg.NodeID, 2*cfg.PongWait)))
	}

	if cfg.KafkaEnabled {
		prod, kerr := kafka.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if kerr != nil {
			logger.Warnf("kafka unavailable, message events disabled: %v", kerr)
		} else {
			defer func() { _ = prod.Close() }()
			opts = append(opts, gateway.WithEvents(prod))
		}
	}

	srv := gateway.NewServer(gateway.Conf{
		NodeID:          cfg.NodeID,
		AuthDeadline:    cfg.AuthDeadline,
		PingInterval:    cfg.PingInterval,
		PongWait:        cfg.PongWait,
		WriteWait:       cfg.WriteWait,
		SendBuffer:      cfg.SendBuffer,
		QueueCapPerUser: cfg.QueueCapPerUser,
		StoreTimeout:    cfg.StoreTimeout,
	}, store, verifier, opts...)
	defer srv.Close()

	if cfg.NatsEnabled {
		var idem natsx.IdemStore
		if redisstore.Ready() {
			idem = natsx.NewRedisIdem(redisstore.Client(), 2*time.Minute)
		} else {
			idem = natsx.NewMemIdem(2 * time.Minute)
		}
		nc, nerr := natsx.Connect(natsx.Config{
			Servers: cfg.NatsServers,
			Name:    cfg.NatsName,
		}, natsx.WithIdem(idem, 2*time.Minute))
		if nerr != nil {
			logger.Warnf("nats unavailable, notify bridge disabled: %v", nerr)
		} else {
			defer nc.Close()
			if serr := nc.Subscribe(cfg.NotifySubject, srv.HandleNotifyMsg); serr != nil {
				logger.Warnf("notify subscribe failed: %v", serr)
			}
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", mid.Origin(cfg.AllowedOrigins...), srv.HandleWS)
	r.POST("/internal/notify", mid.InternalAuth(cfg.InternalToken), srv.HandleNotify)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": srv.Manager().Count()})
	})

	logger.Infof("[HTTP] gateway %s listening on %s", cfg.NodeID, cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatalf("HTTP server failed: %v", err)
	}
}
