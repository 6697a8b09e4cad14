package trialclock

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

func TestDerive(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		endsAt      time.Time
		wantExpired bool
		wantDisplay string
	}{
		{
			name:        "exact boundary is expired",
			endsAt:      now,
			wantExpired: true,
			wantDisplay: ExpiredDisplay,
		},
		{
			name:        "one second ago",
			endsAt:      now.Add(-time.Second),
			wantExpired: true,
			wantDisplay: ExpiredDisplay,
		},
		{
			name:        "exactly five days",
			endsAt:      now.Add(5 * day),
			wantDisplay: "5d 0h 0m",
		},
		{
			name:        "five days minus a second",
			endsAt:      now.Add(5*day - time.Second),
			wantDisplay: "4d 23h 59m",
		},
		{
			name:        "hours and minutes",
			endsAt:      now.Add(3*time.Hour + 25*time.Minute),
			wantDisplay: "3h 25m",
		},
		{
			name:        "minutes only",
			endsAt:      now.Add(42*time.Minute + 10*time.Second),
			wantDisplay: "42m",
		},
		{
			name:        "less than a minute left",
			endsAt:      now.Add(30 * time.Second),
			wantDisplay: "0m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Derive(now, models.Trial{EndsAt: tt.endsAt})

			assert.Equal(t, tt.wantExpired, st.IsExpired)
			assert.Equal(t, tt.wantDisplay, st.Display)
			if tt.wantExpired {
				assert.Nil(t, st.Remaining)
			} else {
				require.NotNil(t, st.Remaining)
				assert.Equal(t, tt.endsAt.Sub(now), *st.Remaining)
			}
		})
	}
}

func TestDerive_ExpiredMatchesSign(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for range 1000 {
		offset := time.Duration(rnd.Int63n(int64(60*day))) - 30*day
		st := DeriveEnd(now, now.Add(offset))
		assert.Equal(t, offset <= 0, st.IsExpired, "offset %s", offset)
	}
}

func TestDerive_DaysFormat(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for range 500 {
		diff := day + time.Duration(rnd.Int63n(int64(40*day)))
		days := int(diff / day)
		hours := int((diff % day) / time.Hour)
		minutes := int((diff % time.Hour) / time.Minute)

		st := DeriveEnd(now, now.Add(diff))
		assert.Equal(t, Format(diff), st.Display)
		assert.Equal(t, fmt.Sprintf("%dd %dh %dm", days, hours, minutes), st.Display)
	}
}
