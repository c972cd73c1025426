package dto

import (
	"github.com/vidinfra/entitle/internal/domain/migration"
)

type MigrateAccountRequest struct {
	migration.AccountMigration
}

func (r *MigrateAccountRequest) Validate() error {
	return r.AccountMigration.Validate()
}

type MigratedBundle struct {
	BundleID        string   `json:"bundle_id"`
	BundleKey       string   `json:"bundle_key"`
	SubscriptionIDs []string `json:"subscription_ids"`
	EventCount      int      `json:"event_count"`
}

type MigrateAccountResponse struct {
	AccountID string           `json:"account_id"`
	Bundles   []MigratedBundle `json:"bundles"`
}

// NewMigrateAccountResponse summarizes what the migration stored
func NewMigrateAccountResponse(data *migration.AccountMigrationData) *MigrateAccountResponse {
	resp := &MigrateAccountResponse{
		AccountID: data.AccountID,
		Bundles:   make([]MigratedBundle, 0, len(data.Bundles)),
	}
	for _, b := range data.Bundles {
		mb := MigratedBundle{
			BundleID:  b.Bundle.ID,
			BundleKey: b.Bundle.BundleKey,
		}
		for _, s := range b.Subscriptions {
			mb.SubscriptionIDs = append(mb.SubscriptionIDs, s.Subscription.ID)
			mb.EventCount += len(s.Events)
		}
		resp.Bundles = append(resp.Bundles, mb)
	}
	return resp
}
