package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Outcome is the result class of one submitted swipe.  Every swipe ends in
// exactly one of them.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// ErrStatusPending reports that the ledger row was appended but the Status
// sheet could not be updated.  The cache holds the new state until a flush
// lands it.
var ErrStatusPending = errors.New("ledger appended, status write pending")

// Result describes what SubmitEvent did.
type Result struct {
	Outcome Outcome
	BadgeID string
	Action  Action
	Holder  Holder

	// State is the badge's state after the call: the new state when
	// accepted, the unchanged current state when rejected.
	State  State
	Reason RejectReason

	// Entry is the appended ledger row.  Appended is false when the
	// failure happened before the ledger write.
	Entry    LedgerEntry
	Appended bool

	Err error
}

// Observer is notified of every outcome.
type Observer interface {
	ObserveOutcome(Outcome)
}

type EngineConfig struct {
	// Location formats ledger dates and times.  Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
	Logger   *log.Logger
	Observer Observer
}

// Engine handles one debounced swipe at a time per badge: directory lookup,
// status check, validation, ledger append and status update.
//
// Engine is safe for concurrent use.  Calls for different badges run in
// parallel; calls for the same badge are serialized from the status read to
// the status write so two swipes can never both pass validation.
type Engine struct {
	directory *Directory
	status    *StatusCache
	ledger    *Ledger

	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
	obs    Observer

	locks keyedMutex
}

func NewEngine(dir *Directory, status *StatusCache, ledger *Ledger, cfg EngineConfig) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		directory: dir,
		status:    status,
		ledger:    ledger,
		loc:       loc,
		now:       now,
		logger:    cfg.Logger,
		obs:       cfg.Observer,
	}
}

// SubmitEvent records a swipe of badgeID asking for action.
//
// The returned error is non-nil exactly when the outcome is failed: invalid
// input, an unreachable or slow store, or a status write that failed after
// the ledger append (ErrStatusPending).  Rejection is not an error.
// Nothing is retried here; the next physical swipe is the retry.
func (e *Engine) SubmitEvent(ctx context.Context, badgeID string, action Action) (Result, error) {
	if action != ActionIn && action != ActionOut {
		return e.fail(Result{BadgeID: badgeID, Action: action}, ErrInvalidAction)
	}
	return e.submit(ctx, badgeID, action)
}

// SubmitToggle records a swipe that asks for the opposite of the badge's
// current state.  The state is read inside the badge's critical section, so
// a toggle is never lost to a concurrent swipe.
func (e *Engine) SubmitToggle(ctx context.Context, badgeID string) (Result, error) {
	return e.submit(ctx, badgeID, "")
}

func (e *Engine) submit(ctx context.Context, rawID string, action Action) (Result, error) {
	res := Result{BadgeID: rawID, Action: action}

	badgeID, err := NormalizeBadgeID(rawID)
	if err != nil {
		return e.fail(res, err)
	}
	res.BadgeID = badgeID

	holder, err := e.directory.Resolve(ctx, badgeID)
	if err != nil {
		return e.fail(res, fmt.Errorf("submit %s: directory: %w", badgeID, err))
	}
	res.Holder = holder

	unlock := e.locks.Lock(badgeID)
	defer unlock()

	snap, err := e.status.Get(ctx, badgeID)
	if err != nil {
		return e.fail(res, fmt.Errorf("submit %s: status: %w", badgeID, err))
	}
	if action == "" {
		action = ActionFor(snap.State.Opposite())
		res.Action = action
	}

	decision := Validate(snap.State, action)
	if !decision.Accepted {
		res.Outcome = OutcomeRejected
		res.State = snap.State
		res.Reason = decision.Reason
		e.observe(res.Outcome)
		return res, nil
	}

	entry := NewLedgerEntry(holder, action, e.now(), e.loc)
	if err := e.ledger.Append(ctx, entry); err != nil {
		res.State = snap.State
		return e.fail(res, fmt.Errorf("submit %s: ledger: %w", badgeID, err))
	}
	res.Entry = entry
	res.Appended = true
	res.State = action.Target()

	if err := e.status.Put(ctx, badgeID, holder.Name, action.Target()); err != nil {
		return e.fail(res, fmt.Errorf("submit %s: %w: %w", badgeID, ErrStatusPending, err))
	}

	res.Outcome = OutcomeAccepted
	e.observe(res.Outcome)
	return res, nil
}

func (e *Engine) fail(res Result, err error) (Result, error) {
	res.Outcome = OutcomeFailed
	res.Err = err
	if e.logger != nil {
		e.logger.Printf("attendance: swipe failed badge=%s action=%s appended=%t err=%v",
			res.BadgeID, res.Action, res.Appended, err)
	}
	e.observe(res.Outcome)
	return res, err
}

func (e *Engine) observe(o Outcome) {
	if e.obs != nil {
		e.obs.ObserveOutcome(o)
	}
}

// Status returns the badge's current status through the cache.
func (e *Engine) Status(ctx context.Context, rawID string) (Snapshot, error) {
	badgeID, err := NormalizeBadgeID(rawID)
	if err != nil {
		return Snapshot{}, err
	}
	return e.status.Get(ctx, badgeID)
}

// Records returns ledger entries, most recent last.
func (e *Engine) Records(ctx context.Context, f EntryFilter) ([]LedgerEntry, error) {
	if f.BadgeID != "" {
		id, err := NormalizeBadgeID(f.BadgeID)
		if err != nil {
			return nil, err
		}
		f.BadgeID = id
	}
	return e.ledger.Entries(ctx, f)
}

// FlushPending retries status writes that failed after their ledger append.
// It returns how many were landed; the error joins every failed retry.
func (e *Engine) FlushPending(ctx context.Context) (int, error) {
	var (
		flushed int
		errs    []error
	)
	for _, badgeID := range e.status.Pending() {
		if err := e.flushOne(ctx, badgeID); err != nil {
			errs = append(errs, err)
			continue
		}
		flushed++
	}
	return flushed, errors.Join(errs...)
}

func (e *Engine) flushOne(ctx context.Context, badgeID string) error {
	unlock := e.locks.Lock(badgeID)
	defer unlock()
	return e.status.Flush(ctx, badgeID)
}
