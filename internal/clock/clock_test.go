package clock_test

import (
	"testing"
	"time"

	"github.com/robertarktes/ticket-inventory/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(6*time.Minute), c.Advance(6*time.Minute))
	assert.Equal(t, start.Add(6*time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, clock.Real().Now().Location())
}
