package main

import (
	"context"
	"os"
	"os/signal"

	"payments/config"
	"payments/db"
	"payments/fraud"
	"payments/message"
	"payments/service"
	observability "payments/trace"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	if os.Getenv("JAEGER_ENDPOINT") != "" || os.Getenv("GATEWAY_ADDR") != "" {
		tp := observability.ConfigureTraceProvider()
		defer func() {
			_ = tp.Shutdown(context.Background())
		}()
	}

	conn, err := db.NewDBConn(cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("Could not connect to Postgres")
	}
	defer conn.Close()
	conn.MigrateSchema()

	redisClient := message.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	fraudChecker := fraud.NewAmountThresholdChecker(cfg.FraudAmountCeiling)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logrus.Info("Starting payments service")

	svc := service.New(redisClient, conn, fraudChecker, cfg.HTTPAddr)
	if err := svc.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("Service stopped with error")
	}
}
