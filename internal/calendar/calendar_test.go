package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonthStampDecomposition(t *testing.T) {
	s := New(100, 1)
	assert.Equal(t, 100, s.Year())
	assert.Equal(t, 1, s.Month())
	assert.True(t, s.IsJanuary())

	s = s.Add(11)
	assert.Equal(t, 100, s.Year())
	assert.Equal(t, 12, s.Month())

	s = s.Add(1)
	assert.Equal(t, 101, s.Year())
	assert.Equal(t, 1, s.Month())
}

func TestYearsSince(t *testing.T) {
	birth := New(80, 3)
	now := New(100, 2)
	assert.Equal(t, 19, now.YearsSince(birth))
	assert.Equal(t, 20, now.Add(1).YearsSince(birth))
}

func TestOrdering(t *testing.T) {
	a := New(5, 6)
	b := a.Add(1)
	assert.True(t, a < b)
	assert.Equal(t, 1, b.MonthsSince(a))
}
