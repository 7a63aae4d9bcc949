// Package onboarding walks a new user through the linear data-collection
// flow and produces the immutable preference record every AI prompt is
// personalized with.
package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Preferences is the finalized personalization record. It is written once by
// the state machine and never re-validated afterwards.
type Preferences struct {
	Name           string  `json:"name"`
	Age            int     `json:"age"`
	Goal           string  `json:"goal"`
	StyleVibe      string  `json:"styleVibe"`
	Challenge      string  `json:"challenge"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

type Step int

const (
	StepName Step = iota
	StepAge
	StepGoal
	StepStyleVibe
	StepChallenge
	StepPhoto
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepName:
		return "name"
	case StepAge:
		return "age"
	case StepGoal:
		return "goal"
	case StepStyleVibe:
		return "style"
	case StepChallenge:
		return "challenge"
	case StepPhoto:
		return "photo"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// MinAge is the youngest age allowed to finish onboarding.
const MinAge = 13

var (
	ErrUnderage  = errors.New("you must be at least 13 to use the app")
	ErrEmptyName = errors.New("name cannot be empty")
)

// WrongStepError is returned when an input arrives for a step other than the
// current one. The flow is strictly forward, with no back-navigation.
type WrongStepError struct {
	Current Step
	Wanted  Step
}

func (e *WrongStepError) Error() string {
	return fmt.Sprintf("onboarding is at step %q, not %q", e.Current, e.Wanted)
}

// InvalidChoiceError is returned when a selection is not one of the fixed
// options offered for the step.
type InvalidChoiceError struct {
	Step   Step
	Choice string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("%q is not a valid %s option", e.Choice, e.Step)
}

// The fixed option sets shown on the selection steps. Selections advance the
// flow immediately; there is no separate confirm.
var (
	Goals = []string{
		"Improve my style",
		"Boost my confidence",
		"Develop better habits",
	}
	StyleVibes = []string{
		"Casual & Comfy",
		"Trendy & Modern",
		"Artsy & Unique",
		"I'm not sure yet!",
	}
	Challenges = []string{
		"Picking daily outfits",
		"Feeling confident in social situations",
		"Sticking to a skincare routine",
	}
)

// Machine drives the onboarding flow: Name, Age, Goal, StyleVibe, Challenge,
// PhotoCapture, then Finalized. Each step validates its own input before the
// forward transition; nothing is re-validated later.
type Machine struct {
	mu         sync.Mutex
	step       Step
	prefs      Preferences
	onComplete func(Preferences) error
	final      *Preferences
}

// New starts a fresh flow. onComplete is the host's completion signal; it
// fires exactly once, when Finalize first succeeds.
func New(onComplete func(Preferences) error) *Machine {
	return &Machine{step: StepName, onComplete: onComplete}
}

// Restored rebuilds a machine for a user whose onboarding already finished
// in an earlier run. Finalize stays idempotent and returns prefs unchanged.
func Restored(prefs Preferences, onComplete func(Preferences) error) *Machine {
	return &Machine{step: StepDone, final: &prefs, onComplete: onComplete}
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

func (m *Machine) SetName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepName {
		return &WrongStepError{Current: m.step, Wanted: StepName}
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	m.prefs.Name = trimmed
	m.step = StepAge
	return nil
}

// SetAge blocks the forward transition for anyone under MinAge.
func (m *Machine) SetAge(age int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepAge {
		return &WrongStepError{Current: m.step, Wanted: StepAge}
	}
	if age < MinAge {
		return ErrUnderage
	}
	m.prefs.Age = age
	m.step = StepGoal
	return nil
}

func (m *Machine) ChooseGoal(goal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepGoal {
		return &WrongStepError{Current: m.step, Wanted: StepGoal}
	}
	if !validChoice(Goals, goal) {
		return &InvalidChoiceError{Step: StepGoal, Choice: goal}
	}
	m.prefs.Goal = goal
	m.step = StepStyleVibe
	return nil
}

func (m *Machine) ChooseStyleVibe(vibe string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepStyleVibe {
		return &WrongStepError{Current: m.step, Wanted: StepStyleVibe}
	}
	if !validChoice(StyleVibes, vibe) {
		return &InvalidChoiceError{Step: StepStyleVibe, Choice: vibe}
	}
	m.prefs.StyleVibe = vibe
	m.step = StepChallenge
	return nil
}

func (m *Machine) ChooseChallenge(challenge string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepChallenge {
		return &WrongStepError{Current: m.step, Wanted: StepChallenge}
	}
	if !validChoice(Challenges, challenge) {
		return &InvalidChoiceError{Step: StepChallenge, Choice: challenge}
	}
	m.prefs.Challenge = challenge
	m.step = StepPhoto
	return nil
}

// AttachPhoto stores an optional profile picture. The flow finalizes whether
// or not a photo was supplied.
func (m *Machine) AttachPhoto(imageBase64 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepPhoto {
		return &WrongStepError{Current: m.step, Wanted: StepPhoto}
	}
	if imageBase64 != "" {
		m.prefs.ProfilePicture = &imageBase64
	}
	return nil
}

// Finalize produces the immutable Preferences record and signals the host.
// Calling it again returns the already-finalized record without resetting
// anything or re-signaling.
func (m *Machine) Finalize() (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step == StepDone {
		return *m.final, nil
	}
	if m.step != StepPhoto {
		return Preferences{}, &WrongStepError{Current: m.step, Wanted: StepPhoto}
	}

	final := m.prefs
	if m.onComplete != nil {
		if err := m.onComplete(final); err != nil {
			return Preferences{}, fmt.Errorf("failed to record onboarding completion: %w", err)
		}
	}
	m.final = &final
	m.step = StepDone
	return final, nil
}

// Finalized reports whether the flow has produced its preference record.
func (m *Machine) Finalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step == StepDone
}

func validChoice(options []string, choice string) bool {
	for _, opt := range options {
		if opt == choice {
			return true
		}
	}
	return false
}
