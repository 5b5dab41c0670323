package ticks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	s := New()
	require.EqualValues(t, 0, s.Now())

	var last uint32
	for i := 0; i < 10; i++ {
		next := s.Advance()
		require.Greater(t, next, last)
		last = next
	}
	require.EqualValues(t, 10, s.Now())
}

func TestNoAdvanceLeavesCounterUnchanged(t *testing.T) {
	s := New()
	s.Advance()
	s.Advance()
	before := s.Now()
	require.EqualValues(t, before, s.Now())
}
