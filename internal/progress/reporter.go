package progress

import (
	"math"
	"time"
)

// Normalize extracts a rounded 0-100 percent from raw. It reports false when
// the block carries no usable percent.
func Normalize(raw Raw) (int, bool) {
	var value float64
	switch {
	case raw.Percent >= 0:
		value = raw.Percent
	case raw.Duration > 0 && raw.OutTime >= 0:
		value = float64(raw.OutTime) / float64(raw.Duration) * 100
	default:
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	rounded := int(math.Round(value))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return rounded, true
}

// Reporter rate-limits normalized percentages for one encoder run. A value is
// emitted only when it exceeds the previous emission and at least interval
// has passed since then; 100 is never held back.
type Reporter struct {
	interval time.Duration
	now      func() time.Time
	last     int
	lastAt   time.Time
}

// NewReporter constructs a Reporter. A non-positive interval disables time
// based throttling.
func NewReporter(interval time.Duration) *Reporter {
	return &Reporter{interval: interval, now: time.Now, last: -1}
}

// Observe normalizes raw and applies Offer.
func (r *Reporter) Observe(raw Raw) (int, bool) {
	percent, ok := Normalize(raw)
	if !ok {
		return 0, false
	}
	return r.Offer(percent)
}

// Offer reports whether percent should be emitted.
func (r *Reporter) Offer(percent int) (int, bool) {
	if r == nil {
		return percent, true
	}
	if percent <= r.last {
		return 0, false
	}
	now := r.now()
	if percent < 100 && r.interval > 0 && !r.lastAt.IsZero() && now.Sub(r.lastAt) < r.interval {
		return 0, false
	}
	r.last = percent
	r.lastAt = now
	return percent, true
}

// Last returns the most recent emitted percent, or -1 before any emission.
func (r *Reporter) Last() int {
	if r == nil {
		return -1
	}
	return r.last
}
