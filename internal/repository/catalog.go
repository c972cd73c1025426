package repository

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/vidinfra/entitle/internal/cache"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/domain/catalog"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"gopkg.in/yaml.v3"
)

const catalogCacheTTL = 5 * time.Minute

// catalogFile is the on-disk shape of the plan catalog
type catalogFile struct {
	Products []catalog.Product `yaml:"products"`
	Plans    []catalog.Plan    `yaml:"plans"`
}

// catalogRepository serves the plan catalog from a YAML file, with an
// in-process cache in front of repeated lookups.
type catalogRepository struct {
	path   string
	cache  cache.Cache
	logger *logger.Logger

	mu       sync.RWMutex
	plans    map[string]*catalog.Plan
	products map[string]*catalog.Product
	loaded   bool
}

func NewCatalogRepository(cfg *config.Configuration, c cache.Cache, log *logger.Logger) catalog.Repository {
	return &catalogRepository{
		path:   cfg.Catalog.Path,
		cache:  c,
		logger: log,
	}
}

func (r *catalogRepository) load() error {
	r.mu.RLock()
	if r.loaded {
		r.mu.RUnlock()
		return nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Check the catalog path configuration").
			WithReportableDetails(map[string]any{"path": r.path}).
			Mark(ierr.ErrCatalogResolution)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return ierr.WithError(err).
			WithHint("The catalog file is not valid YAML").
			WithReportableDetails(map[string]any{"path": r.path}).
			Mark(ierr.ErrCatalogResolution)
	}

	r.plans = make(map[string]*catalog.Plan, len(file.Plans))
	for i := range file.Plans {
		r.plans[file.Plans[i].Name] = &file.Plans[i]
	}
	r.products = make(map[string]*catalog.Product, len(file.Products))
	for i := range file.Products {
		r.products[file.Products[i].Name] = &file.Products[i]
	}
	r.loaded = true

	r.logger.Infow("loaded plan catalog",
		"path", r.path,
		"plans", len(r.plans),
		"products", len(r.products))
	return nil
}

func (r *catalogRepository) GetPlan(ctx context.Context, name string) (*catalog.Plan, error) {
	if cached, ok := r.cache.Get(ctx, cache.PrefixPlan+name); ok {
		if plan, ok := cached.(*catalog.Plan); ok {
			return plan, nil
		}
	}
	if err := r.load(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	plan, ok := r.plans[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ierr.NewErrorf("plan %s not found in catalog", name).
			WithHint("The requested plan is not defined in the catalog").
			WithReportableDetails(map[string]any{"plan": name}).
			Mark(ierr.ErrCatalogResolution)
	}
	r.cache.Set(ctx, cache.PrefixPlan+name, plan, catalogCacheTTL)
	return plan, nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, name string) (*catalog.Product, error) {
	if cached, ok := r.cache.Get(ctx, cache.PrefixProduct+name); ok {
		if product, ok := cached.(*catalog.Product); ok {
			return product, nil
		}
	}
	if err := r.load(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	product, ok := r.products[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ierr.NewErrorf("product %s not found in catalog", name).
			WithHint("The requested product is not defined in the catalog").
			WithReportableDetails(map[string]any{"product": name}).
			Mark(ierr.ErrCatalogResolution)
	}
	r.cache.Set(ctx, cache.PrefixProduct+name, product, catalogCacheTTL)
	return product, nil
}

func (r *catalogRepository) GetProductForPlan(ctx context.Context, planName string) (*catalog.Product, error) {
	plan, err := r.GetPlan(ctx, planName)
	if err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, plan.ProductName)
}
