package core

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/store"
)

// Occasions the outfit builder offers.
var Occasions = []string{"School", "Casual Day", "Party", "Formal Event", "Seasonal"}

var (
	ErrTooFewItems  = errors.New("please select at least 2 items")
	ErrBadOccasion  = errors.New("unknown occasion")
	ErrUnknownCloth = errors.New("unknown clothing item")
)

// Wardrobe is the fixed catalog the user picks from, by category.
var Wardrobe = map[string][]string{
	"Tops":      {"T-shirt", "Blouse", "Sweater", "Hoodie", "Crop Top"},
	"Bottoms":   {"Jeans", "Skirt", "Shorts", "Leggings", "Trousers"},
	"Outerwear": {"Jacket", "Cardigan", "Blazer", "Denim Jacket"},
	"Shoes":     {"Sneakers", "Boots", "Sandals", "Flats"},
}

// OutfitService manages the selection set (capped for free users) and turns
// it into a generated outfit. The selection cap is a set-size policy:
// deselecting an item frees its slot again.
type OutfitService struct {
	engine  *entitlement.Engine
	llm     Generator
	dbStore *store.SQLiteStore
}

func NewOutfitService(engine *entitlement.Engine, llm Generator, db *store.SQLiteStore) *OutfitService {
	return &OutfitService{
		engine:  engine,
		llm:     llm,
		dbStore: db,
	}
}

// SelectItem reserves a selection slot for the item. Re-selecting an already
// selected item is allowed and changes nothing.
func (s *OutfitService) SelectItem(item string) (entitlement.Decision, error) {
	if !inWardrobe(item) {
		return entitlement.Decision{}, fmt.Errorf("%w: %q", ErrUnknownCloth, item)
	}
	tier, err := s.dbStore.GetTier()
	if err != nil {
		return entitlement.Decision{}, fmt.Errorf("failed to read tier: %w", err)
	}
	return s.engine.Select(entitlement.FeatureOutfitItem, tier, item), nil
}

// DeselectItem frees the item's slot. Idempotent for items never selected.
func (s *OutfitService) DeselectItem(item string) {
	s.engine.Release(entitlement.FeatureOutfitItem, item)
}

// SelectedItems returns the current selection in stable order.
func (s *OutfitService) SelectedItems() []string {
	return s.engine.Selected(entitlement.FeatureOutfitItem)
}

// Build generates an outfit from the current selection. Building itself is
// not quota-gated; the cap lives on selection.
func (s *OutfitService) Build(ctx context.Context, occasion string) (string, error) {
	items := s.SelectedItems()
	if len(items) < 2 {
		return "", ErrTooFewItems
	}
	if !validOccasion(occasion) {
		return "", fmt.Errorf("%w: %q", ErrBadOccasion, occasion)
	}

	prefs, err := s.dbStore.GetPreferences()
	if err != nil {
		log.Printf("Could not load preferences for outfit build: %v", err)
	}

	outfit, err := s.llm.BuildOutfit(ctx, items, occasion, prefs)
	if err != nil {
		return "", fmt.Errorf("outfit build failed: %w", err)
	}
	return outfit, nil
}

func inWardrobe(item string) bool {
	for _, items := range Wardrobe {
		for _, candidate := range items {
			if candidate == item {
				return true
			}
		}
	}
	return false
}

func validOccasion(occasion string) bool {
	for _, candidate := range Occasions {
		if candidate == occasion {
			return true
		}
	}
	return false
}
