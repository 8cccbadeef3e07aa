package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vearne/rawsniff/trace"
)

func TestWallClock(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.UTC)
	c := WallClock{now: func() time.Time { return at }}

	ts := c.Now()
	assert.Equal(t, uint32(at.Unix()), ts.Sec)
	assert.Equal(t, uint32(678901), ts.Micros)
	assert.Equal(t, at.Truncate(time.Microsecond), ts.Time().UTC())
}

func TestWallClockEpochBias(t *testing.T) {
	at := time.Unix(1000, 500*int64(time.Microsecond))
	c := WallClock{EpochBias: 10 * time.Second, now: func() time.Time { return at }}

	assert.Equal(t, trace.Timestamp{Sec: 990, Micros: 500}, c.Now())
}

func TestWallClockDefault(t *testing.T) {
	before := time.Now().Unix()
	ts := WallClock{}.Now()
	after := time.Now().Unix()

	assert.GreaterOrEqual(t, int64(ts.Sec), before)
	assert.LessOrEqual(t, int64(ts.Sec), after)
	assert.Less(t, ts.Micros, uint32(1000000))
}

func TestWallClockClamps(t *testing.T) {
	at := time.Unix(100, 0)
	before := WallClock{EpochBias: time.Hour, now: func() time.Time { return at }}
	assert.Equal(t, trace.Timestamp{}, before.Now())

	late := time.Unix(1<<32, 0)
	after := WallClock{now: func() time.Time { return late }}
	assert.Equal(t, trace.Timestamp{Sec: 1<<32 - 1, Micros: 999999}, after.Now())
}
