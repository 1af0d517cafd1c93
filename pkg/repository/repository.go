package repository

import (
	"context"

	"github.com/Tao119/eurekode-sub004/pkg/db/option"
)

// Repository is a generic store over a gorm model. The struct filter
// matches on its non-zero fields; options carry everything else.
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID any, resource any) error
}
