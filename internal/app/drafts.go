package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/pkg/metrics"
)

// DefaultSession is used when a caller does not name a draft session.
const DefaultSession = "default"

type draftKey struct {
	teamID    string
	sessionID string
}

type draftEntry struct {
	draft    *transfer.Draft
	lastSeen time.Time
}

// drafts holds one open scratchpad per (team, session). Entries idle past
// ttl are dropped by sweep.
type drafts struct {
	mu      sync.Mutex
	entries map[draftKey]*draftEntry
	ttl     time.Duration
	clock   func() time.Time
}

func newDrafts(ttl time.Duration, clock func() time.Time) *drafts {
	return &drafts{
		entries: make(map[draftKey]*draftEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// get returns the open draft or opens one with open.
func (d *drafts) get(ctx context.Context, teamID, sessionID string, open func(context.Context, string, string) (*transfer.Draft, error)) (*transfer.Draft, error) {
	key := draftKey{teamID: teamID, sessionID: sessionID}
	d.mu.Lock()
	if e, ok := d.entries[key]; ok && !d.expired(e) {
		e.lastSeen = d.clock()
		d.mu.Unlock()
		return e.draft, nil
	}
	d.mu.Unlock()

	draft, err := open(ctx, teamID, sessionID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Another request may have opened the same session meanwhile.
	if e, ok := d.entries[key]; ok && !d.expired(e) {
		e.lastSeen = d.clock()
		return e.draft, nil
	}
	d.entries[key] = &draftEntry{draft: draft, lastSeen: d.clock()}
	metrics.UpdateDraftSessions(len(d.entries))
	return draft, nil
}

// lookup returns an open draft without creating one.
func (d *drafts) lookup(teamID, sessionID string) (*transfer.Draft, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[draftKey{teamID: teamID, sessionID: sessionID}]
	if !ok || d.expired(e) {
		return nil, false
	}
	e.lastSeen = d.clock()
	return e.draft, true
}

func (d *drafts) drop(teamID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, draftKey{teamID: teamID, sessionID: sessionID})
	metrics.UpdateDraftSessions(len(d.entries))
}

// sweep removes idle sessions and returns how many it dropped.
func (d *drafts) sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for k, e := range d.entries {
		if d.expired(e) {
			e.draft.Discard()
			delete(d.entries, k)
			n++
		}
	}
	metrics.UpdateDraftSessions(len(d.entries))
	return n
}

func (d *drafts) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *drafts) expired(e *draftEntry) bool {
	return d.ttl > 0 && d.clock().Sub(e.lastSeen) > d.ttl
}
