package ui

import (
	"context"
	"time"
)

// ProbeResult is the outcome of Probe: either Present or Absent.
type ProbeResult interface {
	probe()
}

// Present means the probed selector matched Count elements.
type Present struct {
	Selector string
	Count    int
}

// Absent means the probed selector matched nothing within the grace period.
type Absent struct {
	Selector string
}

func (Present) probe() {}
func (Absent) probe()  {}

// Probe checks for an element that may or may not appear, such as a promo
// dialog. It polls for up to grace and reports the outcome; absence is not
// an error. Only a cancelled parent context fails the probe.
func (e *Executor) Probe(ctx context.Context, selector string, grace time.Duration) (ProbeResult, error) {
	if grace <= 0 {
		n, err := e.ReadCount(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return Absent{Selector: selector}, nil
		}
		if n > 0 {
			return Present{Selector: selector, Count: n}, nil
		}
		return Absent{Selector: selector}, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if n, err := e.ReadCount(probeCtx, selector); err == nil && n > 0 {
			return Present{Selector: selector, Count: n}, nil
		}
		select {
		case <-probeCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return Absent{Selector: selector}, nil
		case <-ticker.C:
		}
	}
}
