package core

import (
	"context"
	"fmt"
	"log"

	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/store"
)

// SelfieService gates and runs the selfie style analysis. Free users get one
// analysis per day; the counter is committed only after the collaborator
// succeeds, so a failed analysis never burns the day's quota.
type SelfieService struct {
	engine  *entitlement.Engine
	llm     Generator
	dbStore *store.SQLiteStore
}

func NewSelfieService(engine *entitlement.Engine, llm Generator, db *store.SQLiteStore) *SelfieService {
	return &SelfieService{
		engine:  engine,
		llm:     llm,
		dbStore: db,
	}
}

// Analyze returns the structured feedback, or a denied Decision with a nil
// result when the daily quota is spent.
func (s *SelfieService) Analyze(ctx context.Context, imageBase64 string) (*AnalysisResult, entitlement.Decision, error) {
	tier, err := s.dbStore.GetTier()
	if err != nil {
		return nil, entitlement.Decision{}, fmt.Errorf("failed to read tier: %w", err)
	}

	decision := s.engine.Check(entitlement.FeatureSelfieAnalysis, tier)
	if !decision.Allowed {
		return nil, decision, nil
	}

	prefs, err := s.dbStore.GetPreferences()
	if err != nil {
		log.Printf("Could not load preferences for selfie analysis: %v", err)
	}

	result, err := s.llm.AnalyzeSelfie(ctx, imageBase64, prefs)
	if err != nil {
		return nil, decision, fmt.Errorf("selfie analysis failed: %w", err)
	}

	if err := s.engine.Commit(entitlement.FeatureSelfieAnalysis); err != nil {
		log.Printf("Failed to commit selfie analysis quota: %v", err)
	}
	return result, decision, nil
}
