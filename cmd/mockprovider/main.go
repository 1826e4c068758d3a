package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/relaymsg/gateway/internal/config"
	"github.com/relaymsg/gateway/pkg/mockprovider"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,

			NewSimulatorConfig,
			mockprovider.NewStore,
			mockprovider.NewSimulator,

			func() *fiber.App { return fiber.New() },
		),
		fx.Invoke(startSimulator),
	).Run()
}

func startSimulator(app *fiber.App, sim *mockprovider.Simulator, cfg mockprovider.Config,
	logger *zap.Logger, lc fx.Lifecycle) {
	sim.RegisterRoutes(app)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Listen(cfg.Port); err != nil {
					logger.Error("simulator stopped", zap.Error(err))
				}
			}()

			logger.Info("mock provider simulator started", zap.String("port", cfg.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

func NewSimulatorConfig(cfg *config.Config) mockprovider.Config {
	return mockprovider.Config{
		Port:        cfg.MockServer.Port,
		FailureRate: cfg.MockServer.FailureRate,
		LatencyMin:  cfg.MockServer.LatencyMin,
		LatencyMax:  cfg.MockServer.LatencyMax,
	}
}
