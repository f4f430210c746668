package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bangkok(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func TestPredicates_LateWithinAndBeyondGrace(t *testing.T) {
	loc := bangkok(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	end := start.Add(time.Hour)
	now := NewFixedClock(time.Date(2026, 10, 18, 9, 20, 0, 0, loc)).Now()

	assert.True(t, IsLate(now, start))
	assert.True(t, IsBeyondGracePeriod(now, start, DefaultGrace))
	assert.Equal(t, 20, MinutesLate(now, start))
	assert.False(t, IsExpired(now, end))
	assert.Equal(t, 0, MinutesOver(now, end))
}

func TestPredicates_Boundaries(t *testing.T) {
	loc := bangkok(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	clock := NewFixedClock(start)

	// Exactly at start is not late yet.
	assert.False(t, IsLate(clock.Now(), start))
	assert.Equal(t, 0, MinutesLate(clock.Now(), start))

	clock.Set(start.Add(DefaultGrace))
	assert.True(t, IsLate(clock.Now(), start))
	assert.False(t, IsBeyondGracePeriod(clock.Now(), start, DefaultGrace))

	clock.Advance(time.Second)
	assert.True(t, IsBeyondGracePeriod(clock.Now(), start, DefaultGrace))
	assert.Equal(t, 15, MinutesLate(clock.Now(), start))
}

func TestPredicates_Expired(t *testing.T) {
	loc := bangkok(t)
	end := time.Date(2026, 10, 18, 10, 0, 0, 0, loc)
	now := time.Date(2026, 10, 18, 11, 30, 59, 0, loc)

	assert.True(t, IsExpired(now, end))
	assert.False(t, IsExpired(end, end))
	assert.Equal(t, 90, MinutesOver(now, end))
}

func TestPredicates_ZoneIndependent(t *testing.T) {
	loc := bangkok(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	now := time.Date(2026, 10, 18, 2, 5, 0, 0, time.UTC) // 09:05 in Bangkok

	assert.True(t, IsLate(now, start))
	assert.Equal(t, 5, MinutesLate(now, start))
}

func TestGraceImpliesLate(t *testing.T) {
	loc := bangkok(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	for offset := -30 * time.Minute; offset <= 90*time.Minute; offset += 30 * time.Second {
		now := start.Add(offset)
		if IsBeyondGracePeriod(now, start, DefaultGrace) {
			assert.True(t, IsLate(now, start), "offset %s", offset)
		}
	}
}

func TestPredicatesAreMonotonic(t *testing.T) {
	loc := bangkok(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	end := start.Add(time.Hour)

	var wasLate, wasBeyond, wasExpired bool
	for offset := -time.Hour; offset <= 3*time.Hour; offset += time.Minute {
		now := start.Add(offset)
		late, beyond, expired := IsLate(now, start), IsBeyondGracePeriod(now, start, DefaultGrace), IsExpired(now, end)
		if wasLate {
			assert.True(t, late)
		}
		if wasBeyond {
			assert.True(t, beyond)
		}
		if wasExpired {
			assert.True(t, expired)
		}
		wasLate, wasBeyond, wasExpired = late, beyond, expired
	}
	assert.True(t, wasExpired)
}
