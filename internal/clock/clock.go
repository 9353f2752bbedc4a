package clock

import "time"

// Clock provides the current time and can be replaced in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Mock is a settable clock for tests.
type Mock struct {
	CurrentTime time.Time
}

var _ Clock = (*Mock)(nil)

func NewMock(t time.Time) *Mock {
	return &Mock{CurrentTime: t}
}

func (c *Mock) Now() time.Time {
	return c.CurrentTime
}

func (c *Mock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
