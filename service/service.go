package service

import (
	"context"
	"errors"
	"net/http"

	"payments/db"
	"payments/fraud"
	paymentsHttp "payments/http"
	"payments/message"
	"payments/message/event"
	"payments/message/outbox"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	watermillMessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Service struct {
	watermillRouter *watermillMessage.Router
	echoRouter      *echo.Echo
	httpAddr        string
}

func New(
	redisClient *redis.Client,
	conn db.DB,
	fraudChecker fraud.Checker,
	httpAddr string,
) Service {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := message.NewRedisPublisher(redisClient, watermillLogger)

	eventBus := event.NewBus(redisPublisher)

	paymentRepo := db.NewPaymentRepository(&conn)
	deadLetterRepo := db.NewDeadLetterRepository(&conn)

	eventsHandler := event.NewHandler(paymentRepo, fraudChecker)
	eventProcessorConfig := event.NewProcessorConfig(redisClient, watermillLogger)

	deadLetterSubscriber := message.NewRedisSubscriber(redisClient, "svc-payments.dead-letter", watermillLogger)
	pgSubscriber := outbox.SubscribeForPGMessages(conn.Conn, watermillLogger)

	watermillRouter := message.NewWatermillRouter(
		pgSubscriber,
		redisPublisher,
		deadLetterSubscriber,
		eventProcessorConfig,
		eventsHandler,
		deadLetterRepo,
		watermillLogger,
	)

	echoRouter := paymentsHttp.NewHttpRouter(
		eventBus,
		paymentRepo,
		deadLetterRepo,
	)

	return Service{
		watermillRouter: watermillRouter,
		echoRouter:      echoRouter,
		httpAddr:        httpAddr,
	}
}

func (s Service) Run(
	ctx context.Context,
) error {
	errgrp, ctx := errgroup.WithContext(ctx)

	errgrp.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	errgrp.Go(func() error {
		// we don't want to start HTTP server before Watermill router (so service won't be healthy before it's ready)
		<-s.watermillRouter.Running()

		err := s.echoRouter.Start(s.httpAddr)

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	errgrp.Go(func() error {
		<-ctx.Done()
		return s.echoRouter.Shutdown(context.Background())
	})

	return errgrp.Wait()
}
