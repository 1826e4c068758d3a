package main

import (
	"context"

	"github.com/relaymsg/gateway/internal/config"
	"github.com/relaymsg/gateway/internal/consumers"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/httpclient"
	"github.com/relaymsg/gateway/pkg/mq"
	"github.com/relaymsg/gateway/pkg/mysql"
	"github.com/relaymsg/gateway/pkg/provider"
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

			repository.NewMessageRepository,
			repository.NewAttachmentRepository,
			repository.NewDeliveryJobRepository,
			repository.NewTransactionManager,

			telemetry.NewMetrics,
			telemetry.NewAggregator,

			NewProviderRegistry,
			NewRetryConfig,
			service.NewProviderService,
			service.NewDeliveryService,

			consumers.NewDeliveryConsumer,
		),
		fx.Invoke(runDeliveryConsumer),
	).Run()
}

func runDeliveryConsumer(cfg *config.Config, consumer consumers.DeliveryConsumer, logger *zap.Logger,
	rabbit *mq.Broker, lc fx.Lifecycle) {
	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareQueues(model.QueueDeliverySend); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			go func() {
				if err := consumer.Consume(appCtx); err != nil {
					logger.Error("consumer exited", zap.Error(err))
				}
			}()

			logger.Info("delivery consumer started", zap.String("queue", model.QueueDeliverySend))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping delivery consumer")
			cancel()
			return rabbit.Close()
		},
	})
}

func NewProviderRegistry(cfg *config.Config, logger *zap.Logger) (*provider.Registry, error) {
	client := httpclient.NewHTTPClient(cfg.Providers.Timeout)
	return provider.NewRegistry(cfg.Providers.Entries, provider.DefaultBuilders(), client, logger)
}

func NewRetryConfig(cfg *config.Config) service.ProviderRetryConfig {
	return service.ProviderRetryConfig{Timeout: cfg.Providers.Timeout, MaxRetry: cfg.Providers.MaxRetry}
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
