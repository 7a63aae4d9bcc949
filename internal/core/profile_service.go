package core

import (
	"context"
	"fmt"

	"github.com/glowupapp/server/internal/clock"
	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/onboarding"
	"github.com/glowupapp/server/internal/payment"
	"github.com/glowupapp/server/internal/store"
)

// ProfileService covers the profile screen concerns: preferences and tier
// reads, the checkout hand-off, and the once-per-day reminder bookkeeping.
type ProfileService struct {
	dbStore  *store.SQLiteStore
	payments payment.Provider
	clock    clock.DayKeeper
}

func NewProfileService(db *store.SQLiteStore, payments payment.Provider, dk clock.DayKeeper) *ProfileService {
	return &ProfileService{
		dbStore:  db,
		payments: payments,
		clock:    dk,
	}
}

func (s *ProfileService) Preferences() (*onboarding.Preferences, error) {
	return s.dbStore.GetPreferences()
}

func (s *ProfileService) Tier() (entitlement.Tier, error) {
	return s.dbStore.GetTier()
}

// StartCheckout asks the payment collaborator for a redirect target. The
// session mechanics are entirely the collaborator's.
func (s *ProfileService) StartCheckout(ctx context.Context) (string, error) {
	url, err := s.payments.CreateCheckout(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start checkout: %w", err)
	}
	return url, nil
}

// ConfirmPremium records the upgrade after the host returns from checkout.
// This is an unconditional trust signal; nothing is verified here.
func (s *ProfileService) ConfirmPremium() error {
	return s.dbStore.SetTier(entitlement.TierPremium)
}

// ShouldRemind reports whether the daily reminder is still due today, and
// marks the day as reminded when it is. At most one true per day key.
func (s *ProfileService) ShouldRemind() (bool, error) {
	today := s.clock.Today()
	last, err := s.dbStore.LastReminderDay()
	if err != nil {
		return false, err
	}
	if last == today {
		return false, nil
	}
	if err := s.dbStore.SetLastReminderDay(today); err != nil {
		return false, err
	}
	return true, nil
}
