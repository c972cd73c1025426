package catalog

import (
	"context"
)

// Repository is the catalog collaborator consulted by the aligner and
// the cancellation cascade. Implementations return a catalog resolution
// error for unknown names rather than nil values.
type Repository interface {
	// GetPlan resolves a plan by name
	GetPlan(ctx context.Context, name string) (*Plan, error)

	// GetProduct resolves a product by name
	GetProduct(ctx context.Context, name string) (*Product, error)

	// GetProductForPlan resolves the product a plan is sold under
	GetProductForPlan(ctx context.Context, planName string) (*Product, error)
}
