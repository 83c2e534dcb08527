package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnixSecondsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
	}{
		{name: "whole second", in: time.Unix(1700000000, 0)},
		{name: "milliseconds", in: time.Unix(1700000000, 250*int64(time.Millisecond))},
		{name: "epoch", in: time.Unix(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromUnixSeconds(UnixSeconds(tt.in))
			assert.WithinDuration(t, tt.in, got, time.Microsecond)
		})
	}
	assert.Equal(t, 1700000000.5, UnixSeconds(time.Unix(1700000000, 500*int64(time.Millisecond))))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))

	c.Set(start)
	assert.Zero(t, c.Since(start))
}
