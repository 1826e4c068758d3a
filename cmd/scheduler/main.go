package main

import (
	"context"
	"time"

	"github.com/relaymsg/gateway/internal/config"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/publishers"
	"github.com/relaymsg/gateway/internal/repository"
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

			repository.NewDeliveryJobRepository,

			NewDeliveryPublisher,
		),
		fx.Invoke(runScheduler),
	).Run()
}

func runScheduler(cfg *config.Config, publisher publishers.DeliveryPublisher, logger *zap.Logger,
	rabbit *mq.Broker, lc fx.Lifecycle) {
	interval := cfg.Scheduler.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareQueues(model.QueueDeliverySend); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if err := publisher.Publish(appCtx); err != nil {
							logger.Error("failed to publish due jobs", zap.Error(err))
						}
					case <-appCtx.Done():
						logger.Info("scheduler context cancelled")
						return
					}
				}
			}()

			logger.Info("scheduler started", zap.Duration("interval", interval))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping scheduler")
			cancel()
			return rabbit.Close()
		},
	})
}

func NewDeliveryPublisher(jobRepo repository.DeliveryJobRepository, publisher mq.Publisher,
	cfg *config.Config, logger *zap.Logger) publishers.DeliveryPublisher {
	return publishers.NewDeliveryPublisher(jobRepo, publisher, cfg.Scheduler.BatchSize, logger)
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
