package service

import (
	"context"
	"time"

	"github.com/relaymsg/gateway/pkg/provider"
	"go.uber.org/zap"
)

type ProviderService interface {
	SendWithRetry(ctx context.Context, req provider.Request) (provider.Result, error)
}

type ProviderRetryConfig struct {
	Timeout  time.Duration
	MaxRetry int
}

type providerService struct {
	registry *provider.Registry
	cfg      ProviderRetryConfig
	logger   *zap.Logger
}

func NewProviderService(registry *provider.Registry, cfg ProviderRetryConfig, logger *zap.Logger) ProviderService {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &providerService{registry: registry, cfg: cfg, logger: logger}
}

// SendWithRetry resolves the provider for the request's message type and
// drives the bounded-timeout send loop. Transient failures are retried with
// linear backoff; provider rejections end the loop immediately.
func (p *providerService) SendWithRetry(ctx context.Context, req provider.Request) (provider.Result, error) {
	prov, err := p.registry.Resolve(req.Type)
	if err != nil {
		p.logger.Error("No provider available for message type",
			zap.String("type", string(req.Type)),
			zap.Error(err))
		return provider.Result{}, err
	}

	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxRetry; attempt++ {
		p.logger.Debug("Attempting provider send",
			zap.String("provider", prov.Name()),
			zap.Int("attempt", attempt),
			zap.String("type", string(req.Type)))

		providerCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		result, err := prov.Send(providerCtx, req)
		cancel()

		if err == nil {
			p.logger.Info("Provider accepted message",
				zap.String("provider", result.Provider),
				zap.String("providerMessageID", result.MessageID),
				zap.Int("attempt", attempt))
			return result, nil
		}

		lastErr = err
		p.logger.Warn("Provider send attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("provider", prov.Name()))

		if provider.IsPermanent(err) {
			p.logger.Error("Non-retryable provider error",
				zap.Error(err),
				zap.String("provider", prov.Name()))
			return provider.Result{}, err
		}

		if attempt < p.cfg.MaxRetry {
			delay := time.Duration(attempt) * 100 * time.Millisecond

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return provider.Result{}, ctx.Err()
			}
		}
	}

	p.logger.Error("All provider send attempts exhausted",
		zap.Error(lastErr),
		zap.Int("maxRetries", p.cfg.MaxRetry))

	return provider.Result{}, lastErr
}
