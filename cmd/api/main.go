package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/relaymsg/gateway/internal/api"
	v1 "github.com/relaymsg/gateway/internal/api/v1"
	"github.com/relaymsg/gateway/internal/config"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/mq"
	"github.com/relaymsg/gateway/pkg/mysql"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,

			NewConnectionDB,
			NewMQConnection,
			NewMQPublisher,
			NewFiberApp,

			repository.NewMessageRepository,
			repository.NewAttachmentRepository,
			repository.NewDeliveryJobRepository,
			repository.NewTransactionManager,

			telemetry.NewMetrics,
			telemetry.NewAggregator,

			service.NewMessageService,
			service.NewEnqueueService,

			v1.NewHandler,
		),
		fx.Invoke(startServer),
	).Run()
}

func startServer(app *fiber.App, handler *v1.Handler, cfg *config.Config, logger *zap.Logger,
	rabbit *mq.Broker, lc fx.Lifecycle) {
	api.SetupRoutes(app, handler)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareQueues(model.QueueDeliverySend, model.QueueWebhookIn); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			go func() {
				if err := app.Listen(cfg.API.Port); err != nil {
					logger.Error("server stopped", zap.Error(err))
				}
			}()

			logger.Info("api server started", zap.String("port", cfg.API.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := app.ShutdownWithContext(ctx); err != nil {
				return err
			}
			return rabbit.Close()
		},
	})
}

func NewFiberApp(logger *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler(logger)})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.Broker, error) {
	return mq.Connect(cfg.RabbitMQ, logger)
}

func NewMQPublisher(rabbitMQ *mq.Broker) (mq.Publisher, error) {
	return rabbitMQ.Publisher()
}
