package capture

import (
	"math"
	"time"

	"github.com/vearne/rawsniff/trace"
)

// Clock stamps captured packets relative to the trace epoch.
type Clock interface {
	Now() trace.Timestamp
}

// WallClock reads the system clock. EpochBias is the distance between the
// Unix epoch and the trace epoch and is subtracted from every reading;
// pcap uses the Unix epoch so the zero value is right for it.
// Readings outside the 32 bit seconds range are clamped to its ends.
type WallClock struct {
	EpochBias time.Duration

	now func() time.Time
}

func (c WallClock) Now() trace.Timestamp {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now().Add(-c.EpochBias)
	switch sec := t.Unix(); {
	case sec < 0:
		return trace.Timestamp{}
	case sec > math.MaxUint32:
		return trace.Timestamp{Sec: math.MaxUint32, Micros: 999999}
	}
	return trace.Timestamp{
		Sec:    uint32(t.Unix()),
		Micros: uint32(t.Nanosecond() / int(time.Microsecond)),
	}
}
