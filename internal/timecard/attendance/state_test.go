package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		current  State
		action   Action
		accepted bool
	}{
		{StateOut, ActionIn, true},
		{StateIn, ActionOut, true},
		{StateOut, ActionOut, false},
		{StateIn, ActionIn, false},
		{State(""), ActionIn, true},
		{State(""), ActionOut, false},
	}
	for _, tt := range tests {
		d := Validate(tt.current, tt.action)
		assert.Equal(t, tt.accepted, d.Accepted, "%q --%s-->", tt.current, tt.action)
		if tt.accepted {
			assert.Empty(t, d.Reason)
		} else {
			assert.Equal(t, RejectAlreadyInState, d.Reason)
		}
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{
		"IN": ActionIn, "in": ActionIn, " entrance ": ActionIn,
		"OUT": ActionOut, "Exit": ActionOut,
	} {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAction("sideways")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestNormalizeBadgeID(t *testing.T) {
	id, err := NormalizeBadgeID("  aa11\n")
	require.NoError(t, err)
	assert.Equal(t, "AA11", id)

	for _, bad := range []string{"", "   ", "ZZ", "AA 11"} {
		_, err := NormalizeBadgeID(bad)
		assert.ErrorIs(t, err, ErrInvalidBadgeID, "%q", bad)
	}
}

func TestStateHelpers(t *testing.T) {
	assert.Equal(t, StateOut, StateIn.Opposite())
	assert.Equal(t, StateIn, StateOut.Opposite())
	assert.Equal(t, StateIn, ActionIn.Target())
	assert.Equal(t, ActionOut, ActionFor(StateOut))
	assert.False(t, UnregisteredHolder("AA").Registered())
	assert.True(t, Holder{Name: "Ann"}.Registered())
}
