package testutil

import (
	"context"
	"sync"

	"github.com/vidinfra/entitle/internal/domain/catalog"
	ierr "github.com/vidinfra/entitle/internal/errors"
)

// InMemoryCatalogStore is an in-memory implementation of catalog.Repository
type InMemoryCatalogStore struct {
	mu       sync.RWMutex
	plans    map[string]*catalog.Plan
	products map[string]*catalog.Product
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		plans:    make(map[string]*catalog.Plan),
		products: make(map[string]*catalog.Product),
	}
}

func (s *InMemoryCatalogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = make(map[string]*catalog.Plan)
	s.products = make(map[string]*catalog.Product)
}

func (s *InMemoryCatalogStore) AddPlan(plan *catalog.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.Name] = plan
}

func (s *InMemoryCatalogStore) AddProduct(product *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.Name] = product
}

func (s *InMemoryCatalogStore) GetPlan(ctx context.Context, name string) (*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[name]
	if !ok {
		return nil, ierr.NewErrorf("plan %s not found in catalog", name).
			WithHint("The requested plan is not defined in the catalog").
			Mark(ierr.ErrCatalogResolution)
	}
	return plan, nil
}

func (s *InMemoryCatalogStore) GetProduct(ctx context.Context, name string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[name]
	if !ok {
		return nil, ierr.NewErrorf("product %s not found in catalog", name).
			WithHint("The requested product is not defined in the catalog").
			Mark(ierr.ErrCatalogResolution)
	}
	return product, nil
}

func (s *InMemoryCatalogStore) GetProductForPlan(ctx context.Context, planName string) (*catalog.Product, error) {
	plan, err := s.GetPlan(ctx, planName)
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, plan.ProductName)
}
