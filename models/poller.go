package models

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dormstack/dormops_client/config"
)

// SessionPoller re-fetches the bound session on a fixed interval while it is
// in progress, so actions recorded by another viewer of the same session
// become visible. Each successful fetch replaces the session state and runs
// one reconciliation pass.
type SessionPoller struct {
	API      SessionAPI
	Store    *SessionStore
	Logger   *logrus.Logger
	Interval time.Duration
}

func NewSessionPoller(api SessionAPI, store *SessionStore, logger *logrus.Logger) *SessionPoller {
	return &SessionPoller{
		API:      api,
		Store:    store,
		Logger:   logger,
		Interval: 30 * time.Second,
	}
}

// Run polls until the context is cancelled. In-flight fetches are not
// aborted on cancellation; their results are discarded by the generation
// check instead.
func (p *SessionPoller) Run(ctx context.Context) {
	if p == nil || p.API == nil || p.Store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.PollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// PollOnce performs a single fetch-replace-reconcile pass. The generation
// captured before the fetch guards against applying a response that belongs
// to a session context that has since changed.
func (p *SessionPoller) PollOnce(ctx context.Context) {
	session := p.Store.Session()
	if session == nil || session.Status != SessionStatusInProgress {
		return
	}
	generation := p.Store.Generation()
	sessionId := session.SessionId

	fresh, err := p.API.FetchSession(ctx, sessionId)
	if err != nil {
		if p.Logger != nil {
			config.LogError(p.Logger, "models/poller.go", "PollOnce", "fetch", sessionId, err)
		}
		return
	}
	if fresh == nil {
		return
	}

	if !p.Store.ReplaceSessionIfGeneration(fresh, generation) {
		// The workflow moved on while the fetch was in flight.
		return
	}
	if _, err := p.Store.Reconcile(ctx); err != nil {
		if p.Logger != nil {
			config.LogError(p.Logger, "models/poller.go", "PollOnce", "reconcile", sessionId, err)
		}
	}
}
