package mocks

import (
	"context"

	"github.com/relaymsg/gateway/pkg/provider"
	"github.com/stretchr/testify/mock"
)

type ProviderService struct {
	mock.Mock
}

func (p *ProviderService) SendWithRetry(ctx context.Context, req provider.Request) (provider.Result, error) {
	args := p.Called(ctx, req)
	return args.Get(0).(provider.Result), args.Error(1)
}
