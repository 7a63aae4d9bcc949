// Package entitlement decides, before a gated action is issued, whether the
// current user may perform it given their tier and usage so far. Checks are
// dry-run safe; counters advance only through Commit (count policies) or
// Select (selection policies), and Commit must be called only after the
// gated action has actually succeeded.
package entitlement

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/glowupapp/server/internal/clock"
)

// CounterStore persists per-day usage counters across restarts. The day key
// stored alongside the count marks when it was last reset.
type CounterStore interface {
	GetCounter(featureID string) (count int, lastResetDay string, err error)
	SetCounter(featureID string, count int, day string) error
}

// Engine maps (feature, tier, usage so far) to an allow/deny Decision. All
// methods are safe for concurrent use; counter reads and writes for a
// feature never interleave.
type Engine struct {
	mu         sync.Mutex
	policies   map[Feature]map[Tier]Policy
	clock      clock.DayKeeper
	counters   CounterStore
	session    map[Feature]int
	selections map[Feature]map[string]struct{}
}

func New(policies map[Feature]map[Tier]Policy, dk clock.DayKeeper, counters CounterStore) *Engine {
	return &Engine{
		policies:   policies,
		clock:      dk,
		counters:   counters,
		session:    make(map[Feature]int),
		selections: make(map[Feature]map[string]struct{}),
	}
}

// Check reports whether the feature may be used now. It never mutates state,
// so it can be called repeatedly, including to render remaining-quota text.
func (e *Engine) Check(feature Feature, tier Tier) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy, ok := e.policies[feature][tier]
	if !ok {
		return Decision{Allowed: true, Feature: feature, Remaining: Unlimited}
	}

	switch p := policy.(type) {
	case PerDay:
		count := e.dailyCount(feature)
		return e.decide(feature, count, p.Limit)
	case PerSession:
		return e.decide(feature, e.session[feature], p.Limit)
	case Selection:
		return e.decide(feature, len(e.selections[feature]), p.Limit)
	case IndexWindow:
		// Position-gated features are not count-gated; use Unlocked.
		return Decision{Allowed: true, Feature: feature, Remaining: Unlimited}
	default:
		return Decision{Allowed: true, Feature: feature, Remaining: Unlimited}
	}
}

// Commit records one successful use of a count-gated feature. Counters
// advance regardless of tier so that a later downgrade sees real usage.
// Per-day counters are persisted with today's key after every increment.
func (e *Engine) Commit(feature Feature) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.counterPolicy(feature).(type) {
	case PerDay:
		count := e.dailyCount(feature) + 1
		today := e.clock.Today()
		if err := e.counters.SetCounter(string(feature), count, today); err != nil {
			return fmt.Errorf("failed to persist counter for %s: %w", feature, err)
		}
	case PerSession:
		e.session[feature]++
	}
	return nil
}

// Select reserves one slot of a selection-capped set. Selecting an item that
// is already in the set is allowed and changes nothing.
func (e *Engine) Select(feature Feature, tier Tier, item string) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.selections[feature]
	if set == nil {
		set = make(map[string]struct{})
		e.selections[feature] = set
	}
	if _, selected := set[item]; selected {
		return e.selectionDecision(feature, tier, set)
	}

	policy, gated := e.policies[feature][tier].(Selection)
	if gated && len(set) >= policy.Limit {
		return Decision{Feature: feature, Reason: ReasonQuotaExceeded}
	}
	set[item] = struct{}{}
	return e.selectionDecision(feature, tier, set)
}

// Release frees the slot held by item. It is idempotent: releasing an item
// that was never selected is a no-op.
func (e *Engine) Release(feature Feature, item string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.selections[feature], item)
}

// Selected returns the current selection set in stable order.
func (e *Engine) Selected(feature Feature) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]string, 0, len(e.selections[feature]))
	for item := range e.selections[feature] {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

// Unlocked reports whether the entry at index is available on the given
// tier. Only IndexWindow policies lock entries.
func (e *Engine) Unlocked(feature Feature, tier Tier, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.policies[feature][tier].(IndexWindow); ok {
		return index < p.Days
	}
	return true
}

// Remaining reports how many uses (or selection slots) are left, or
// Unlimited when no policy applies.
func (e *Engine) Remaining(feature Feature, tier Tier) int {
	return e.Check(feature, tier).Remaining
}

// Limit reports the configured cap for the feature on the given tier, or
// Unlimited.
func (e *Engine) Limit(feature Feature, tier Tier) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch p := e.policies[feature][tier].(type) {
	case PerDay:
		return p.Limit
	case PerSession:
		return p.Limit
	case Selection:
		return p.Limit
	case IndexWindow:
		return p.Days
	default:
		return Unlimited
	}
}

// dailyCount reads the persisted counter, treating it as zero once the
// stored day key differs from today. The reset is lazy: nothing is written
// until the next Commit. Callers hold e.mu.
func (e *Engine) dailyCount(feature Feature) int {
	count, lastResetDay, err := e.counters.GetCounter(string(feature))
	if err != nil {
		log.Printf("Failed to read counter for %s, treating as zero: %v", feature, err)
		return 0
	}
	if lastResetDay != e.clock.Today() {
		return 0
	}
	return count
}

// counterPolicy finds the counter semantics for a feature. Policy kinds are
// consistent across tiers, so the strictest configured tier determines how
// usage is recorded. Callers hold e.mu.
func (e *Engine) counterPolicy(feature Feature) Policy {
	for _, tier := range []Tier{TierFree, TierPremium} {
		if p, ok := e.policies[feature][tier]; ok {
			return p
		}
	}
	return nil
}

func (e *Engine) decide(feature Feature, count, limit int) Decision {
	if count >= limit {
		return Decision{Feature: feature, Reason: ReasonQuotaExceeded}
	}
	return Decision{Allowed: true, Feature: feature, Remaining: limit - count}
}

func (e *Engine) selectionDecision(feature Feature, tier Tier, set map[string]struct{}) Decision {
	remaining := Unlimited
	if p, ok := e.policies[feature][tier].(Selection); ok {
		remaining = p.Limit - len(set)
	}
	return Decision{Allowed: true, Feature: feature, Remaining: remaining}
}
