package preview1

import (
	"context"
	"math"
	"slices"
	"time"
)

type clockWait struct {
	timeout   time.Duration
	precision time.Duration
	userdata  uint64
}

// pollOnce answers subs the way poll_oneoff does. Only clock subscriptions
// are waited on; descriptor readiness is reported as unsupported, and if
// any such event exists it is returned without waiting.
func (h *Host) pollOnce(ctx context.Context, subs []Subscription) ([]Event, error) {
	if len(subs) == 0 {
		return nil, fail(ErrnoInvalidArgument)
	}

	var (
		events []Event
		clocks []clockWait
	)
	for _, s := range subs {
		if s.Type != EventTypeClock {
			events = append(events, Event{
				Userdata: s.Userdata,
				Errno:    ErrnoUnsupported,
				Type:     s.Type,
			})
			continue
		}

		timeout := s.Clock.Timeout
		if s.Clock.Flags&SubclockAbstime != 0 {
			now := reading(h.clock, s.Clock.ID)
			if timeout > now {
				timeout -= now
			} else {
				timeout = 0
			}
		}
		clocks = append(clocks, clockWait{
			timeout:   saturate(timeout),
			precision: saturate(s.Clock.Precision),
			userdata:  s.Userdata,
		})
	}
	if len(events) > 0 {
		return events, nil
	}

	slices.SortStableFunc(clocks, func(a, b clockWait) int {
		switch {
		case a.timeout < b.timeout:
			return -1
		case a.timeout > b.timeout:
			return 1
		}
		return 0
	})
	wake := clocks[0].timeout + clocks[0].precision
	if wake < clocks[0].timeout {
		wake = time.Duration(math.MaxInt64)
	}
	matching := len(clocks)
	for i, c := range clocks {
		if c.timeout > wake {
			matching = i
			break
		}
	}

	if err := h.sleep(ctx, clocks[matching-1].timeout); err != nil {
		return nil, err
	}

	for _, c := range clocks[:matching] {
		events = append(events, Event{Userdata: c.userdata, Type: EventTypeClock})
	}
	return events, nil
}

func saturate(ns uint64) time.Duration {
	if ns > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// sleep waits for d on the host clock, or until ctx is done.
func (h *Host) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-h.clock.After(d):
		return nil
	case <-ctx.Done():
		return fail(ErrnoCancelled)
	}
}
