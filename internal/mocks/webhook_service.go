package mocks

import (
	"context"

	"github.com/relaymsg/gateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type WebhookService struct {
	mock.Mock
}

func (w *WebhookService) Process(ctx context.Context, cmd service.WebhookCommand) error {
	args := w.Called(ctx, cmd)
	return args.Error(0)
}
