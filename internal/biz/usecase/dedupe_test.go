package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduper(t *testing.T) {
	d := NewDeduper(5 * time.Minute)
	now := time.Now()

	assert.True(t, d.FirstSeen("m1", now))
	assert.False(t, d.FirstSeen("m1", now.Add(time.Minute)))
	assert.True(t, d.FirstSeen("m2", now))
	assert.True(t, d.FirstSeen("", now))
	assert.True(t, d.FirstSeen("", now), "empty ids are never deduplicated")

	assert.Equal(t, 2, d.Sweep(now.Add(6*time.Minute)))
	assert.True(t, d.FirstSeen("m1", now.Add(6*time.Minute)))
}
