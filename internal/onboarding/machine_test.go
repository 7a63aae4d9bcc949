package onboarding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeFlow(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.SetName("Alex"))
	require.NoError(t, m.SetAge(15))
	require.NoError(t, m.ChooseGoal("Improve my style"))
	require.NoError(t, m.ChooseStyleVibe("Casual & Comfy"))
	require.NoError(t, m.ChooseChallenge("Picking daily outfits"))
}

func TestHappyPath(t *testing.T) {
	var recorded *Preferences
	m := New(func(p Preferences) error {
		recorded = &p
		return nil
	})

	assert.Equal(t, StepName, m.Step())
	completeFlow(t, m)
	assert.Equal(t, StepPhoto, m.Step())

	prefs, err := m.Finalize()
	require.NoError(t, err)
	assert.True(t, m.Finalized())

	assert.Equal(t, "Alex", prefs.Name)
	assert.Equal(t, 15, prefs.Age)
	assert.Equal(t, "Improve my style", prefs.Goal)
	assert.Equal(t, "Casual & Comfy", prefs.StyleVibe)
	assert.Equal(t, "Picking daily outfits", prefs.Challenge)
	assert.Nil(t, prefs.ProfilePicture)

	require.NotNil(t, recorded)
	assert.Equal(t, prefs, *recorded)
}

func TestUnderageBlocked(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.SetName("Sam"))

	assert.ErrorIs(t, m.SetAge(12), ErrUnderage)
	assert.Equal(t, StepAge, m.Step(), "flow must not advance for an underage user")

	// Exactly the minimum age passes.
	require.NoError(t, m.SetAge(13))
	assert.Equal(t, StepGoal, m.Step())
}

func TestNameValidation(t *testing.T) {
	m := New(nil)

	assert.ErrorIs(t, m.SetName("   "), ErrEmptyName)
	assert.Equal(t, StepName, m.Step())

	require.NoError(t, m.SetName("  Riley  "))
	completeRest := func() Preferences {
		require.NoError(t, m.SetAge(14))
		require.NoError(t, m.ChooseGoal("Boost my confidence"))
		require.NoError(t, m.ChooseStyleVibe("I'm not sure yet!"))
		require.NoError(t, m.ChooseChallenge("Sticking to a skincare routine"))
		prefs, err := m.Finalize()
		require.NoError(t, err)
		return prefs
	}
	assert.Equal(t, "Riley", completeRest().Name)
}

func TestOutOfOrderInputRejected(t *testing.T) {
	m := New(nil)

	err := m.SetAge(15)
	var wrongStep *WrongStepError
	require.ErrorAs(t, err, &wrongStep)
	assert.Equal(t, StepName, wrongStep.Current)
	assert.Equal(t, StepAge, wrongStep.Wanted)

	assert.Error(t, m.ChooseGoal("Improve my style"))
	_, err = m.Finalize()
	assert.Error(t, err)
	assert.Equal(t, StepName, m.Step())
}

func TestInvalidChoiceRejected(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.SetName("Alex"))
	require.NoError(t, m.SetAge(16))

	err := m.ChooseGoal("Become famous")
	var invalid *InvalidChoiceError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StepGoal, invalid.Step)
	assert.Equal(t, StepGoal, m.Step())
}

func TestPhotoIsOptional(t *testing.T) {
	m := New(nil)
	completeFlow(t, m)

	// A supplied photo lands in the record.
	require.NoError(t, m.AttachPhoto("ZmFrZSBqcGVnIGJ5dGVz"))
	prefs, err := m.Finalize()
	require.NoError(t, err)
	require.NotNil(t, prefs.ProfilePicture)
	assert.Equal(t, "ZmFrZSBqcGVnIGJ5dGVz", *prefs.ProfilePicture)

	// Skipping the photo entirely still finalizes.
	skipped := New(nil)
	completeFlow(t, skipped)
	prefs, err = skipped.Finalize()
	require.NoError(t, err)
	assert.Nil(t, prefs.ProfilePicture)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	calls := 0
	m := New(func(Preferences) error {
		calls++
		return nil
	})
	completeFlow(t, m)

	first, err := m.Finalize()
	require.NoError(t, err)
	second, err := m.Finalize()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "completion signal must fire exactly once")
}

func TestFinalizeFailureKeepsFlowOpen(t *testing.T) {
	fail := true
	m := New(func(Preferences) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
	completeFlow(t, m)

	_, err := m.Finalize()
	require.Error(t, err)
	assert.False(t, m.Finalized())

	fail = false
	_, err = m.Finalize()
	assert.NoError(t, err)
	assert.True(t, m.Finalized())
}

func TestRestoredMachineIsAlreadyDone(t *testing.T) {
	pic := "cGhvdG8="
	saved := Preferences{
		Name: "Alex", Age: 15,
		Goal: "Improve my style", StyleVibe: "Trendy & Modern",
		Challenge: "Feeling confident in social situations", ProfilePicture: &pic,
	}
	calls := 0
	m := Restored(saved, func(Preferences) error {
		calls++
		return nil
	})

	assert.True(t, m.Finalized())
	prefs, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, saved, prefs)
	assert.Equal(t, 0, calls)

	var wrongStep *WrongStepError
	assert.ErrorAs(t, m.SetName("someone else"), &wrongStep)
}
