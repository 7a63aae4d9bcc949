package core

import (
	"context"
	"fmt"
	"log"

	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/store"
)

// PlanDayView is one plan day as shown to the client, with the premium lock
// applied.
type PlanDayView struct {
	Label  string `json:"day"`
	Locked bool   `json:"locked"`
	// Detail is omitted for locked days so the client cannot peek past
	// the paywall by inspecting the payload.
	Detail *PlanDay `json:"detail,omitempty"`
}

// PlanService generates the 7-day glow-up plan and applies the day lock:
// free users see only the first days of the window, by position rather than
// by any usage count.
type PlanService struct {
	engine  *entitlement.Engine
	llm     Generator
	dbStore *store.SQLiteStore
}

func NewPlanService(engine *entitlement.Engine, llm Generator, db *store.SQLiteStore) *PlanService {
	return &PlanService{
		engine:  engine,
		llm:     llm,
		dbStore: db,
	}
}

func (s *PlanService) Plan(ctx context.Context) ([]PlanDayView, error) {
	tier, err := s.dbStore.GetTier()
	if err != nil {
		return nil, fmt.Errorf("failed to read tier: %w", err)
	}

	prefs, err := s.dbStore.GetPreferences()
	if err != nil {
		log.Printf("Could not load preferences for plan generation: %v", err)
	}

	plan, err := s.llm.GeneratePlan(ctx, prefs)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	views := make([]PlanDayView, PlanLength)
	for i := range plan {
		view := PlanDayView{Label: fmt.Sprintf("Day %d", i+1)}
		if s.engine.Unlocked(entitlement.FeaturePlanDay, tier, i) {
			day := plan[i]
			view.Detail = &day
		} else {
			view.Locked = true
		}
		views[i] = view
	}
	return views, nil
}
