package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem(t *testing.T) {
	before := time.Now()
	now := System().Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
	assert.Equal(t, time.UTC, now.Location())
}

func TestFixed(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Fixed(at)

	assert.Equal(t, at, c.Now())
	assert.Equal(t, at, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, at.Add(time.Hour), c.Now())
}
