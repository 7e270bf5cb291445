package kernel

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// StartDispatchLoop begins a periodic sweep that re-offers DISPATCHABLE
// transport orders to idle vehicles, running at most once per tick (the
// simulation time factor does not affect the interval). The loop stops when ctx is
// cancelled or the kernel transitions to SHUTDOWN; callers normally tie
// ctx's lifetime to the supervisor's own.
//
// This loop is not part of spec.md's distilled operation set: something
// has to periodically turn DISPATCHABLE orders into assignments, since
// dispatchVehicle otherwise only fires on an explicit caller request.
func (s *Supervisor) StartDispatchLoop(ctx context.Context, tick time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.dispatchCancel = cancel
	s.mu.Unlock()

	limiter := rate.NewLimiter(rate.Every(tick), 1)
	go func() {
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			s.sweepDispatch()
		}
	}()
}

func (s *Supervisor) sweepDispatch() {
	if s.GetState() != Operating {
		return
	}
	start := time.Now()
	outcome := "ok"

	idleVehicles := s.pool.ByKind("Vehicle")
	for _, ve := range idleVehicles {
		name := ve.ObjectName()
		if _, err := s.orders.DispatchVehicle(name, false, time.Now().UnixMilli()); err != nil {
			outcome = "partial"
		}
	}

	s.recordOrderState(nil)
	if s.metrics != nil {
		s.metrics.RecordDispatch(outcome, time.Since(start))
	}
}
