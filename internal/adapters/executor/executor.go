// Package executor implements the fan-out executor: it launches one
// goroutine per selected adapter, rate-limits and circuit-breaks each
// call, and fans results into a single typed event stream that the app
// layer merges as offers arrive.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flightmesh/flightmesh/internal/adapters/observability"
	"github.com/flightmesh/flightmesh/internal/adapters/router"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// Event is the typed message every adapter goroutine emits onto the
// fan-in channel: one stream the collector can select on, instead of an
// ad hoc pair of channels per adapter.
type Event struct {
	AdapterID string
	Offer     domain.RawOffer
	Err       error
	Done      bool // marks the end of this adapter's stream
}

// Executor owns the breaker registry and rate limiters shared across every
// query it fans out.
type Executor struct {
	Breaker            *Breaker
	Limiters           *Limiters
	FirstResponseGrace time.Duration

	// InteractiveDeadline bounds the interactive fan-out issued for a live
	// user request; BackgroundDeadline bounds the longer-running sweep
	// issued for stragglers and the refresh scheduler.
	InteractiveDeadline time.Duration
	BackgroundDeadline  time.Duration

	laddersMu sync.Mutex
	ladders   map[string]*EscalationLadder
}

// NewExecutor wires sane production defaults.
func NewExecutor() *Executor {
	return &Executor{
		Breaker:             NewBreaker(DefaultBreakerConfig),
		Limiters:            NewLimiters(5, 5),
		ladders:             make(map[string]*EscalationLadder),
		FirstResponseGrace:  200 * time.Millisecond,
		InteractiveDeadline: 4 * time.Second,
		BackgroundDeadline:  60 * time.Second,
	}
}

func (x *Executor) ladder(sourceID string) *EscalationLadder {
	x.laddersMu.Lock()
	defer x.laddersMu.Unlock()
	if l, ok := x.ladders[sourceID]; ok {
		return l
	}
	l := NewLadder(DefaultLadder, 5)
	x.ladders[sourceID] = l
	return l
}

// AdapterSet resolves a router.RoutePlan to the concrete domain.Adapter
// implementations the caller registered; it's a plain map so the executor
// stays decoupled from any one adapter package.
type AdapterSet map[string]domain.Adapter

// FanOutInteractive launches every planned adapter and returns as soon as
// the first offer arrives plus a short grace window, or the deadline is
// hit — whichever comes first. The remaining adapters keep running under
// the background context passed in by the caller (normally a detached
// context scoped to a longer deadline) so their results still reach the
// merge path once they land, dispatched as a background crawl.
func (x *Executor) FanOutInteractive(ctx context.Context, q domain.Query, plans []router.RoutePlan, adapters AdapterSet, deadline time.Time) (<-chan Event, <-chan Event) {
	fanin := make(chan Event, 64)
	go x.dispatch(ctx, q, plans, adapters, deadline, fanin)

	collected := make(chan Event, 64)
	background := make(chan Event, 256)
	go x.splitInteractive(fanin, collected, background)

	return collected, background
}

// FanOutBackground runs every planned adapter to completion (or deadline)
// without the interactive grace-window short-circuit; used by the
// RefreshScheduler.
func (x *Executor) FanOutBackground(ctx context.Context, q domain.Query, plans []router.RoutePlan, adapters AdapterSet, deadline time.Time) <-chan Event {
	out := make(chan Event, 256)
	go x.dispatch(ctx, q, plans, adapters, deadline, out)
	return out
}

func (x *Executor) dispatch(ctx context.Context, q domain.Query, plans []router.RoutePlan, adapters AdapterSet, deadline time.Time, primary chan Event) {
	defer close(primary)

	g, gctx := errgroup.WithContext(ctx)
	for _, plan := range plans {
		plan := plan
		adapter, ok := adapters[plan.AdapterID]
		if !ok {
			continue
		}
		g.Go(func() error {
			x.runAdapter(gctx, adapter, plan.AdapterID, q, deadline, primary)
			return nil
		})
	}
	_ = g.Wait()
}

// runAdapter owns the rate-limit wait, circuit-breaker check, and outcome
// bookkeeping for a single adapter call, forwarding every RawOffer and any
// terminal error onto out.
func (x *Executor) runAdapter(ctx context.Context, adapter domain.Adapter, adapterID string, q domain.Query, deadline time.Time, out chan Event) {
	if !x.Breaker.Allow(adapterID) {
		observability.ObserveAdapterInvocation(adapterID, "circuit_open")
		out <- Event{AdapterID: adapterID, Err: errCircuitOpen(adapterID), Done: true}
		return
	}

	limiter := x.Limiters.For(adapterID)
	waitStart := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		x.Breaker.RecordFailure(adapterID, domain.FailureCancelled)
		observability.ObserveAdapterInvocation(adapterID, "failure")
		out <- Event{AdapterID: adapterID, Err: err, Done: true}
		return
	}
	observability.ObserveRateLimitWait(adapterID, time.Since(waitStart))

	ctx = WithStrategy(ctx, x.ladder(adapterID).Current())
	offers, errs := adapter.Search(ctx, q, deadline)
	sawOffer := false
	var lastErr error

	for offers != nil || errs != nil {
		select {
		case o, ok := <-offers:
			if !ok {
				offers = nil
				continue
			}
			sawOffer = true
			out <- Event{AdapterID: adapterID, Offer: o}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			lastErr = err
		case <-ctx.Done():
			lastErr = ctx.Err()
			offers, errs = nil, nil
		}
	}

	if lastErr != nil {
		kind := adapter.ClassifyFailure(lastErr)
		x.Breaker.RecordFailure(adapterID, kind)
		if kind == domain.FailureBotChallenge {
			x.ladder(adapterID).Advance()
		}
		x.Breaker.SetEscalationLevel(adapterID, x.ladder(adapterID).Level())
		observability.ObserveAdapterInvocation(adapterID, "failure")
		log.Warn().Str("source_id", adapterID).Str("failure_kind", string(kind)).Err(lastErr).Msg("adapter call failed")
		out <- Event{AdapterID: adapterID, Err: lastErr, Done: true}
		return
	}

	x.Breaker.RecordSuccess(adapterID)
	if sawOffer {
		x.ladder(adapterID).Decay()
		x.Breaker.SetEscalationLevel(adapterID, x.ladder(adapterID).Level())
	}
	observability.ObserveAdapterInvocation(adapterID, "success")
	out <- Event{AdapterID: adapterID, Done: true}
}

// splitInteractive implements the 200ms grace-window short-circuit: once
// the first Offer event arrives, a grace timer starts; every event up to
// that point (or up to the fan-in channel closing, whichever is first)
// goes to interactive, after which interactive is closed and every
// remaining event -- from adapters still running under the background
// context -- is drained into background instead, so no dispatch goroutine
// ever blocks on a send no one is reading.
func (x *Executor) splitInteractive(fanin <-chan Event, interactive, background chan Event) {
	defer close(background)

	var grace <-chan time.Time
	interactiveOpen := true
	closeInteractive := func() {
		if interactiveOpen {
			close(interactive)
			interactiveOpen = false
		}
	}
	defer closeInteractive()

	for {
		select {
		case ev, ok := <-fanin:
			if !ok {
				return
			}
			if interactiveOpen {
				interactive <- ev
				if grace == nil && ev.Offer.SourceID != "" {
					grace = time.After(x.FirstResponseGrace)
				}
			} else {
				background <- ev
			}
		case <-grace:
			closeInteractive()
			grace = nil
		}
	}
}

type circuitOpenError struct{ adapterID string }

func (e *circuitOpenError) Error() string { return "circuit open for " + e.adapterID }

func errCircuitOpen(adapterID string) error { return &circuitOpenError{adapterID: adapterID} }
