package catalog

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// PhaseType classifies a pricing phase within a plan
type PhaseType string

const (
	PhaseTypeTrial     PhaseType = "trial"
	PhaseTypeDiscount  PhaseType = "discount"
	PhaseTypeFixedTerm PhaseType = "fixed_term"
	PhaseTypeEvergreen PhaseType = "evergreen"
)

// DurationUnit is the unit of a phase duration
type DurationUnit string

const (
	DurationUnitDay       DurationUnit = "day"
	DurationUnitWeek      DurationUnit = "week"
	DurationUnitMonth     DurationUnit = "month"
	DurationUnitYear      DurationUnit = "year"
	DurationUnitUnlimited DurationUnit = "unlimited"
)

// PhaseDuration describes how long a phase lasts before the plan moves
// to the next one. An unlimited duration marks a terminal phase.
type PhaseDuration struct {
	Unit   DurationUnit `json:"unit" yaml:"unit"`
	Length int          `json:"length" yaml:"length"`
}

// IsUnlimited reports whether the phase never ends on its own
func (d PhaseDuration) IsUnlimited() bool {
	return d.Unit == DurationUnitUnlimited
}

// AddTo returns the instant at which a phase starting at t ends
func (d PhaseDuration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case DurationUnitDay:
		return t.AddDate(0, 0, d.Length)
	case DurationUnitWeek:
		return t.AddDate(0, 0, 7*d.Length)
	case DurationUnitMonth:
		return t.AddDate(0, d.Length, 0)
	case DurationUnitYear:
		return t.AddDate(d.Length, 0, 0)
	default:
		return t
	}
}

// PlanPhase is one pricing phase of a plan
type PlanPhase struct {
	Name           string          `json:"name" yaml:"name"`
	Type           PhaseType       `json:"type" yaml:"type"`
	Duration       PhaseDuration   `json:"duration" yaml:"duration"`
	RecurringPrice decimal.Decimal `json:"recurring_price" yaml:"recurring_price"`
	Currency       string          `json:"currency" yaml:"currency"`
}

// Plan is an ordered sequence of pricing phases sold under a product
type Plan struct {
	Name        string      `json:"name" yaml:"name"`
	ProductName string      `json:"product_name" yaml:"product_name"`
	PriceList   string      `json:"price_list" yaml:"price_list"`
	Phases      []PlanPhase `json:"phases" yaml:"phases"`
}

// InitialPhase returns the first phase of the plan
func (p *Plan) InitialPhase() (*PlanPhase, error) {
	if len(p.Phases) == 0 {
		return nil, ierr.NewErrorf("plan %s has no phases", p.Name).
			WithHint("Catalog plan is missing phase definitions").
			Mark(ierr.ErrCatalogResolution)
	}
	return &p.Phases[0], nil
}

// PhaseByName resolves a phase of this plan by name
func (p *Plan) PhaseByName(name string) (*PlanPhase, error) {
	for i := range p.Phases {
		if p.Phases[i].Name == name {
			return &p.Phases[i], nil
		}
	}
	return nil, ierr.NewErrorf("phase %s not found in plan %s", name, p.Name).
		WithHint("Catalog could not resolve the requested plan phase").
		WithReportableDetails(map[string]any{
			"plan":  p.Name,
			"phase": name,
		}).
		Mark(ierr.ErrCatalogResolution)
}

// Product groups the plans of one sellable product and carries the
// add-on rules consulted by the cancellation cascade
type Product struct {
	Name string `json:"name" yaml:"name"`

	// Category determines whether subscriptions to this product anchor a
	// bundle or attach to an existing one
	Category types.ProductCategory `json:"category" yaml:"category"`

	// IncludedAddons lists add-on products bundled into this product at no
	// extra charge; a standalone subscription to one is redundant
	IncludedAddons []string `json:"included_addons" yaml:"included_addons"`

	// AvailableAddons lists add-on products that may be purchased
	// alongside this product
	AvailableAddons []string `json:"available_addons" yaml:"available_addons"`
}

// IncludesAddon reports whether the add-on product is bundled into the product
func (p *Product) IncludesAddon(addonProductName string) bool {
	return lo.Contains(p.IncludedAddons, addonProductName)
}

// SupportsAddon reports whether the add-on product may coexist with the product
func (p *Product) SupportsAddon(addonProductName string) bool {
	return lo.Contains(p.AvailableAddons, addonProductName)
}
