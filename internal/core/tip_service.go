package core

import (
	"context"
	"log"

	"github.com/glowupapp/server/internal/clock"
	"github.com/glowupapp/server/internal/store"
)

// fallbackTip is shown when the collaborator fails; it is never cached so a
// later retry the same day can still fetch a real tip.
const fallbackTip = "Remember to drink water and be kind to yourself today! ✨"

// TipService serves the daily tip, cached in the store under the current day
// key so the model is asked at most once per day.
type TipService struct {
	llm     Generator
	dbStore *store.SQLiteStore
	clock   clock.DayKeeper
}

func NewTipService(llm Generator, db *store.SQLiteStore, dk clock.DayKeeper) *TipService {
	return &TipService{
		llm:     llm,
		dbStore: db,
		clock:   dk,
	}
}

func (s *TipService) Tip(ctx context.Context) string {
	day := s.clock.Today()

	cached, err := s.dbStore.GetDailyTip(day)
	if err != nil {
		log.Printf("Failed to read tip cache: %v", err)
	} else if cached != "" {
		return cached
	}

	prefs, err := s.dbStore.GetPreferences()
	if err != nil {
		log.Printf("Could not load preferences for daily tip: %v", err)
	}

	tip, err := s.llm.DailyTip(ctx, prefs)
	if err != nil {
		log.Printf("Daily tip generation failed, serving fallback: %v", err)
		return fallbackTip
	}

	if err := s.dbStore.SetDailyTip(day, tip); err != nil {
		log.Printf("Failed to cache daily tip: %v", err)
	}
	return tip
}
