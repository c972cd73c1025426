package service

import (
	"github.com/shopspring/decimal"
	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/testutil"
	"github.com/vidinfra/entitle/internal/types"
)

func paramsFromSuite(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:              s.GetLogger(),
		Config:              s.GetConfig(),
		Clock:               s.GetClock(),
		SubRepo:             stores.SubscriptionRepo,
		EventRepo:           stores.EventRepo,
		CatalogRepo:         stores.CatalogRepo,
		MigrationRepo:       stores.MigrationRepo,
		Scheduler:           s.GetScheduler(),
		TransitionPublisher: s.GetPublisher(),
	}
}

// seedCatalog installs the fixture catalog shared by the service tests:
// three base products with different add-on rules plus one add-on.
func seedCatalog(s *testutil.BaseServiceTestSuite) {
	store := s.GetStores().CatalogRepo.(*testutil.InMemoryCatalogStore)

	store.AddProduct(&catalog.Product{
		Name:            "Spotlight",
		Category:        types.ProductCategoryBase,
		AvailableAddons: []string{"Caption"},
	})
	store.AddProduct(&catalog.Product{
		Name:            "SpotlightPremium",
		Category:        types.ProductCategoryBase,
		IncludedAddons:  []string{"Caption"},
		AvailableAddons: []string{"Caption"},
	})
	store.AddProduct(&catalog.Product{
		Name:     "Studio",
		Category: types.ProductCategoryBase,
	})
	store.AddProduct(&catalog.Product{
		Name:     "Caption",
		Category: types.ProductCategoryAddOn,
	})

	store.AddPlan(&catalog.Plan{
		Name:        "spotlight-monthly",
		ProductName: "Spotlight",
		PriceList:   "default",
		Phases: []catalog.PlanPhase{
			{
				Name:     "trial",
				Type:     catalog.PhaseTypeTrial,
				Duration: catalog.PhaseDuration{Unit: catalog.DurationUnitDay, Length: 14},
			},
			{
				Name:           "evergreen",
				Type:           catalog.PhaseTypeEvergreen,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitUnlimited},
				RecurringPrice: decimal.NewFromInt(30),
				Currency:       "USD",
			},
		},
	})
	store.AddPlan(&catalog.Plan{
		Name:        "spotlight-premium",
		ProductName: "SpotlightPremium",
		PriceList:   "default",
		Phases: []catalog.PlanPhase{
			{
				Name:           "evergreen",
				Type:           catalog.PhaseTypeEvergreen,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitUnlimited},
				RecurringPrice: decimal.NewFromInt(80),
				Currency:       "USD",
			},
		},
	})
	store.AddPlan(&catalog.Plan{
		Name:        "spotlight-launch",
		ProductName: "Spotlight",
		PriceList:   "default",
		Phases: []catalog.PlanPhase{
			{
				Name:     "trial",
				Type:     catalog.PhaseTypeTrial,
				Duration: catalog.PhaseDuration{Unit: catalog.DurationUnitDay, Length: 14},
			},
			{
				Name:           "discount",
				Type:           catalog.PhaseTypeDiscount,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitMonth, Length: 3},
				RecurringPrice: decimal.NewFromInt(15),
				Currency:       "USD",
			},
			{
				Name:           "evergreen",
				Type:           catalog.PhaseTypeEvergreen,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitUnlimited},
				RecurringPrice: decimal.NewFromInt(30),
				Currency:       "USD",
			},
		},
	})
	store.AddPlan(&catalog.Plan{
		Name:        "studio-monthly",
		ProductName: "Studio",
		PriceList:   "default",
		Phases: []catalog.PlanPhase{
			{
				Name:           "evergreen",
				Type:           catalog.PhaseTypeEvergreen,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitUnlimited},
				RecurringPrice: decimal.NewFromInt(50),
				Currency:       "USD",
			},
		},
	})
	store.AddPlan(&catalog.Plan{
		Name:        "caption-monthly",
		ProductName: "Caption",
		PriceList:   "default",
		Phases: []catalog.PlanPhase{
			{
				Name:           "evergreen",
				Type:           catalog.PhaseTypeEvergreen,
				Duration:       catalog.PhaseDuration{Unit: catalog.DurationUnitUnlimited},
				RecurringPrice: decimal.NewFromInt(10),
				Currency:       "USD",
			},
		},
	})
}
