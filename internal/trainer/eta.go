package trainer

import (
	"math"
	"time"
)

// etaEstimator turns reported fraction-complete samples into a
// remaining-time estimate using an exponentially smoothed rate. Estimates
// are monotone only in expectation; regressions between samples are fine.
type etaEstimator struct {
	max          float64
	timeConstant float64 // seconds
	now          func() time.Time

	started   bool
	haveRate  bool
	prevValue float64
	prevTime  time.Time
	rate      float64 // units of value per second
}

func newEtaEstimator(max float64, timeConstant time.Duration, now func() time.Time) *etaEstimator {
	if now == nil {
		now = time.Now
	}
	return &etaEstimator{
		max:          max,
		timeConstant: timeConstant.Seconds(),
		now:          now,
	}
}

// Report feeds the current fraction-complete sample.
func (e *etaEstimator) Report(value float64) {
	t := e.now()
	if !e.started {
		e.started = true
		e.prevValue = value
		e.prevTime = t
		return
	}

	dt := t.Sub(e.prevTime).Seconds()
	if dt <= 0 {
		return
	}
	instRate := (value - e.prevValue) / dt
	if !e.haveRate {
		e.rate = instRate
		e.haveRate = true
	} else {
		weight := 1 - math.Exp(-dt/e.timeConstant)
		e.rate += weight * (instRate - e.rate)
	}
	e.prevValue = value
	e.prevTime = t
}

// Estimate returns the estimated remaining seconds, or +Inf when no
// forward progress has been observed yet.
func (e *etaEstimator) Estimate() float64 {
	if !e.haveRate || e.rate <= 0 {
		return math.Inf(1)
	}
	return (e.max - e.prevValue) / e.rate
}

// formatRemaining renders an estimate in seconds for humans.
func formatRemaining(seconds float64) string {
	if math.IsInf(seconds, 1) || math.IsNaN(seconds) || seconds < 0 {
		return "Pending..."
	}
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Second).String()
}
