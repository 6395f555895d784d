package lockbox

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// TimeIDGenerator produces time-derived identifiers of the form
// "<unix seconds>.<microseconds>". Identifiers are strictly increasing for
// a single generator even when the clock does not advance.
type TimeIDGenerator struct {
	clock Clock
	mu    sync.Mutex
	last  int64
}

// NewTimeIDGenerator creates a generator reading time from clock.
func NewTimeIDGenerator(clock Clock) *TimeIDGenerator {
	return &TimeIDGenerator{clock: clock}
}

func (g *TimeIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	micros := g.clock.Now().UnixMicro()
	if micros <= g.last {
		micros = g.last + 1
	}
	g.last = micros

	return fmt.Sprintf("%d.%06d", micros/1e6, micros%1e6)
}
