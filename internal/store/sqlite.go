// Package store is the durable key-value state behind the app: tier,
// finalized preferences, per-feature usage counters, and the day-keyed
// caches. It is the single source of truth that survives restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/onboarding"
)

// Keys in the app_state table.
const (
	keyTier               = "userTier"
	keyPreferences        = "userPreferences"
	keyOnboardingComplete = "onboardingComplete"
	keyDailyTip           = "dailyTip"
	keyLastReminderDay    = "lastNotificationDate"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS app_state (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS usage_counters (
        feature_id TEXT PRIMARY KEY,
        count INTEGER NOT NULL DEFAULT 0,
        last_reset_day TEXT NOT NULL DEFAULT ''
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// getState reads a raw state value. Absent keys report ok=false, not an error.
func (s *SQLiteStore) getState(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query state %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) setState(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO app_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// GetTier returns the stored tier, defaulting to Free for a fresh install.
func (s *SQLiteStore) GetTier() (entitlement.Tier, error) {
	value, ok, err := s.getState(keyTier)
	if err != nil {
		return entitlement.TierFree, err
	}
	if !ok {
		return entitlement.TierFree, nil
	}
	return entitlement.Tier(value), nil
}

func (s *SQLiteStore) SetTier(tier entitlement.Tier) error {
	return s.setState(keyTier, string(tier))
}

// GetPreferences returns the finalized preference record, or nil if
// onboarding has not produced one yet.
func (s *SQLiteStore) GetPreferences() (*onboarding.Preferences, error) {
	value, ok, err := s.getState(keyPreferences)
	if err != nil || !ok {
		return nil, err
	}
	var prefs onboarding.Preferences
	if err := json.Unmarshal([]byte(value), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode stored preferences: %w", err)
	}
	return &prefs, nil
}

func (s *SQLiteStore) SetPreferences(prefs onboarding.Preferences) error {
	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return s.setState(keyPreferences, string(encoded))
}

func (s *SQLiteStore) OnboardingComplete() (bool, error) {
	value, ok, err := s.getState(keyOnboardingComplete)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

func (s *SQLiteStore) SetOnboardingComplete() error {
	return s.setState(keyOnboardingComplete, "true")
}

// GetCounter implements entitlement.CounterStore. A feature with no row yet
// reports a zero count and an empty day key.
func (s *SQLiteStore) GetCounter(featureID string) (int, string, error) {
	var count int
	var lastResetDay string
	err := s.db.QueryRow(
		"SELECT count, last_reset_day FROM usage_counters WHERE feature_id = ?", featureID,
	).Scan(&count, &lastResetDay)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, "", nil
		}
		return 0, "", fmt.Errorf("failed to query counter for %q: %w", featureID, err)
	}
	return count, lastResetDay, nil
}

// SetCounter implements entitlement.CounterStore.
func (s *SQLiteStore) SetCounter(featureID string, count int, day string) error {
	_, err := s.db.Exec(
		`INSERT INTO usage_counters (feature_id, count, last_reset_day) VALUES (?, ?, ?)
         ON CONFLICT(feature_id) DO UPDATE SET count = excluded.count, last_reset_day = excluded.last_reset_day`,
		featureID, count, day,
	)
	if err != nil {
		return fmt.Errorf("failed to write counter for %q: %w", featureID, err)
	}
	return nil
}

type cachedTip struct {
	Day string `json:"date"`
	Tip string `json:"tip"`
}

// GetDailyTip returns the cached tip for the given day key, or "" when the
// cache is absent or holds a different day's tip.
func (s *SQLiteStore) GetDailyTip(day string) (string, error) {
	value, ok, err := s.getState(keyDailyTip)
	if err != nil || !ok {
		return "", err
	}
	var cached cachedTip
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		return "", fmt.Errorf("failed to decode cached tip: %w", err)
	}
	if cached.Day != day {
		return "", nil
	}
	return cached.Tip, nil
}

func (s *SQLiteStore) SetDailyTip(day, tip string) error {
	encoded, err := json.Marshal(cachedTip{Day: day, Tip: tip})
	if err != nil {
		return fmt.Errorf("failed to encode tip cache: %w", err)
	}
	return s.setState(keyDailyTip, string(encoded))
}

// LastReminderDay returns the day key of the most recent daily reminder, or
// "" if none was ever shown.
func (s *SQLiteStore) LastReminderDay() (string, error) {
	value, _, err := s.getState(keyLastReminderDay)
	return value, err
}

func (s *SQLiteStore) SetLastReminderDay(day string) error {
	return s.setState(keyLastReminderDay, day)
}
