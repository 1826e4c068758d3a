package main

import (
	"context"

	"github.com/relaymsg/gateway/internal/config"
	"github.com/relaymsg/gateway/internal/consumers"
	"github.com/relaymsg/gateway/internal/dedup"
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
			NewMQConsumer,
			NewMQPublisher,
			NewDedupFilter,

			repository.NewMessageRepository,
			repository.NewAttachmentRepository,
			repository.NewTransactionManager,

			telemetry.NewMetrics,

			service.NewMessageService,
			service.NewWebhookService,

			consumers.NewWebhookConsumer,
		),
		fx.Invoke(runWebhookConsumer),
	).Run()
}

func runWebhookConsumer(cfg *config.Config, consumer consumers.WebhookConsumer, logger *zap.Logger,
	rabbit *mq.Broker, lc fx.Lifecycle) {
	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareQueues(model.QueueWebhookIn); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			go func() {
				if err := consumer.Consume(appCtx); err != nil {
					logger.Error("consumer exited", zap.Error(err))
				}
			}()

			logger.Info("webhook consumer started", zap.String("queue", model.QueueWebhookIn))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping webhook consumer")
			cancel()
			return rabbit.Close()
		},
	})
}

func NewDedupFilter(cfg *config.Config) service.DedupFilter {
	return dedup.NewFilter(dedup.NewClient(cfg.Redis))
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.Broker, error) {
	return mq.Connect(cfg.RabbitMQ, logger)
}

func NewMQConsumer(rabbitMQ *mq.Broker) (mq.Consumer, error) {
	return rabbitMQ.Consumer()
}

func NewMQPublisher(rabbitMQ *mq.Broker) (mq.Publisher, error) {
	return rabbitMQ.Publisher()
}
