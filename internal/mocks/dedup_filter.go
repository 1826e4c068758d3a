package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type DedupFilter struct {
	mock.Mock
}

func (d *DedupFilter) IsNew(ctx context.Context, eventKey string) (bool, error) {
	args := d.Called(ctx, eventKey)
	return args.Bool(0), args.Error(1)
}

func (d *DedupFilter) Forget(ctx context.Context, eventKey string) error {
	args := d.Called(ctx, eventKey)
	return args.Error(0)
}
