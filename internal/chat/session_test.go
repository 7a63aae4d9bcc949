package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionSeedsGreeting(t *testing.T) {
	s := NewSession("Hey, Alex! I'm your GlowUp Coach. What's on your mind today?")

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, SenderModel, history[0].Sender)
	assert.Contains(t, history[0].Text, "GlowUp Coach")

	assert.Equal(t, 0, NewSession("").Len())
}

func TestAppendUserTurnRejectsEmptyText(t *testing.T) {
	s := NewSession("")

	assert.ErrorIs(t, s.AppendUserTurn(""), ErrEmptyMessage)
	assert.ErrorIs(t, s.AppendUserTurn("   \n\t "), ErrEmptyMessage)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.AppendUserTurn("  hello  "))
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, SenderUser, history[0].Sender)
}

func TestReplaceTextOnlyTouchesLastTurn(t *testing.T) {
	s := NewSession("hi")
	require.NoError(t, s.AppendUserTurn("how do I style a denim jacket?"))
	handle := s.AppendPlaceholder()

	require.NoError(t, s.ReplaceText(handle, "Great question"))
	require.NoError(t, s.ReplaceText(handle, "Great question! Denim works with"))

	// Once another turn lands, the old handle is rejected.
	require.NoError(t, s.AppendUserTurn("and what about shoes?"))
	assert.ErrorIs(t, s.ReplaceText(handle, "late write"), ErrStaleTurn)

	history := s.History()
	assert.Equal(t, "Great question! Denim works with", history[2].Text)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewSession("hi")
	require.NoError(t, s.AppendUserTurn("hello"))

	history := s.History()
	history[0].Text = "mutated"

	assert.Equal(t, "hi", s.History()[0].Text)
}
