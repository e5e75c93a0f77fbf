// Package history records API-usage counters (spec.md §9's history-DB
// supplement) into the same Postgres store as the entity tables, but
// outside the write executor: these rows carry no entity invariant, so
// serializing them with account/profile writes would only cost latency.
package history

import (
	"context"
	"log/slog"

	"github.com/afrodite/datingcore/ent"
)

// Recorder writes ApiUsageEvent rows fire-and-forget from request
// handling. A bounded channel plus a single drain goroutine keeps a
// burst of requests from opening one Postgres connection per request.
type Recorder struct {
	db     *ent.Client
	events chan event
	done   chan struct{}
}

type event struct {
	accountID     int64
	route         string
	method        string
	statusCode    int
	clientVersion string
}

// New starts a Recorder with the given channel depth. Call Shutdown to
// drain pending events and stop the background goroutine.
func New(db *ent.Client, queueDepth int) *Recorder {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	r := &Recorder{
		db:     db,
		events: make(chan event, queueDepth),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one usage event. Non-blocking: a full queue drops the
// event rather than slow down the request path, logging at debug level.
func (r *Recorder) Record(accountID int64, route, method string, statusCode int, clientVersion string) {
	select {
	case r.events <- event{accountID, route, method, statusCode, clientVersion}:
	default:
		slog.Debug("history: queue full, dropping usage event", "route", route)
	}
}

// Shutdown closes the event channel and waits for the drain goroutine
// to flush what's queued.
func (r *Recorder) Shutdown() {
	close(r.events)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	ctx := context.Background()
	for e := range r.events {
		_, err := r.db.ApiUsageEvent.Create().
			SetAccountID(e.accountID).
			SetRoute(e.route).
			SetMethod(e.method).
			SetStatusCode(e.statusCode).
			SetClientVersion(e.clientVersion).
			Save(ctx)
		if err != nil {
			slog.Error("history: failed to record usage event", "route", e.route, "error", err)
		}
	}
}
