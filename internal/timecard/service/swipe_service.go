package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/timecard/internal/feedback"
	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

var (
	ErrInvalidCardID = errors.New("card_id is required")
)

// Failure reasons reported in SwipeResponse.Reason when a swipe fails.
const (
	ReasonStoreTimeout     = "store_timeout"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonStatusPending    = "status_pending"
	ReasonInternal         = "internal_error"
	ReasonUnknownReader    = "unknown_reader"
)

// SwipeObserver is notified of every handled swipe.
type SwipeObserver interface {
	ObserveSwipe(outcome string, elapsed time.Duration)
}

type SwipeConfig struct {
	Debounce attendance.DebounceConfig
	// SharedDebounce applies one debouncer across every reader, the way a
	// single physical reader behaves.  Otherwise each reader gets its own.
	SharedDebounce bool

	Feedback feedback.Sink
	Logger   *log.Logger
	Observer SwipeObserver
	Now      func() time.Time
}

// SwipeService turns a reader's swipe into an attendance event: reader
// check, debounce, engine, then swipe log and feedback.
type SwipeService struct {
	registry *ReaderRegistry
	engine   *attendance.Engine
	swipeLog store.SwipeLogStore

	feedback feedback.Sink
	logger   *log.Logger
	obs      SwipeObserver
	now      func() time.Time

	debounceCfg attendance.DebounceConfig
	shared      *attendance.Debouncer
	mu          sync.Mutex
	perReader   map[string]*attendance.Debouncer
}

func NewSwipeService(reg *ReaderRegistry, engine *attendance.Engine, sl store.SwipeLogStore, cfg SwipeConfig) *SwipeService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &SwipeService{
		registry:    reg,
		engine:      engine,
		swipeLog:    sl,
		feedback:    cfg.Feedback,
		logger:      cfg.Logger,
		obs:         cfg.Observer,
		now:         now,
		debounceCfg: cfg.Debounce,
		perReader:   make(map[string]*attendance.Debouncer),
	}
	if cfg.SharedDebounce {
		s.shared = attendance.NewDebouncer(cfg.Debounce)
	}
	return s
}

// Handle processes one swipe.
//
// Input errors (missing reader or card, bad badge id or action) are
// returned without a response.  A swipe that reached the engine and failed
// returns both a response describing the failure and the error.  Unknown
// readers, suppressed and rejected swipes are not errors.
func (s *SwipeService) Handle(ctx context.Context, req types.SwipeRequest) (types.SwipeResponse, error) {
	started := s.now()
	now := started.UTC()

	readerID := strings.TrimSpace(req.ReaderID)
	cardID := strings.TrimSpace(req.CardID)
	if readerID == "" {
		return types.SwipeResponse{}, ErrInvalidReaderID
	}
	if cardID == "" {
		return types.SwipeResponse{}, ErrInvalidCardID
	}
	badgeID, err := attendance.NormalizeBadgeID(cardID)
	if err != nil {
		return types.SwipeResponse{}, err
	}
	var action attendance.Action
	if strings.TrimSpace(req.Action) != "" {
		if action, err = attendance.ParseAction(req.Action); err != nil {
			return types.SwipeResponse{}, err
		}
	}

	rec, known, err := s.registry.Lookup(ctx, readerID)
	if err != nil {
		return types.SwipeResponse{}, fmt.Errorf("Handle lookup reader: %w", err)
	}
	_ = s.registry.NoteSeen(ctx, readerID, now)

	resp := types.SwipeResponse{
		Known:      known,
		ReaderID:   readerID,
		SwipeID:    newSwipeID(),
		ServerTime: now.Format(time.RFC3339Nano),
	}
	ev := feedback.Event{SwipeID: resp.SwipeID, ReaderID: readerID, BadgeID: badgeID, Action: string(action), At: now}

	if !known {
		resp.Outcome = feedback.OutcomeUnknownReader
		resp.Reason = ReasonUnknownReader
		s.finish(ctx, started, resp, ev)
		return resp, nil
	}

	if action == "" {
		switch rec.Mode {
		case store.ModeIn:
			action = attendance.ActionIn
		case store.ModeOut:
			action = attendance.ActionOut
		}
		ev.Action = string(action)
	}

	if !s.debouncer(readerID).Detect(badgeID, now) {
		resp.OK = true
		resp.Outcome = feedback.OutcomeSuppressed
		s.finish(ctx, started, resp, ev)
		return resp, nil
	}

	var res attendance.Result
	if action == "" {
		res, err = s.engine.SubmitToggle(ctx, badgeID)
	} else {
		res, err = s.engine.SubmitEvent(ctx, badgeID, action)
	}

	resp.OK = err == nil
	resp.Outcome = string(res.Outcome)
	resp.State = string(res.State)
	resp.Holder = res.Holder.Name
	resp.Registered = res.Holder.BadgeID != "" && res.Holder.Registered()
	resp.Reason = string(res.Reason)
	if err != nil {
		resp.Reason = FailureReason(err)
	}
	ev.Action = string(res.Action)
	s.finish(ctx, started, resp, ev)
	return resp, err
}

// FailureReason classifies a swipe error for responses and logs.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, attendance.ErrStatusPending):
		return ReasonStatusPending
	case errors.Is(err, store.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonStoreTimeout
	case errors.Is(err, store.ErrUnavailable):
		return ReasonStoreUnavailable
	}
	return ReasonInternal
}

func (s *SwipeService) finish(ctx context.Context, started time.Time, resp types.SwipeResponse, ev feedback.Event) {
	decided := s.now().UTC()

	// The swipe log and feedback are best effort; a failure here must not
	// change what the reader is told.
	if s.swipeLog != nil {
		err := s.swipeLog.RecordSwipe(ctx, store.SwipeLogRecord{
			SwipeID:    resp.SwipeID,
			ReaderID:   resp.ReaderID,
			BadgeID:    ev.BadgeID,
			Action:     ev.Action,
			Outcome:    resp.Outcome,
			State:      resp.State,
			Reason:     resp.Reason,
			ReceivedAt: started.UTC(),
			DecidedAt:  decided,
		})
		if err != nil {
			s.logf("swipe log write failed id=%s err=%v", resp.SwipeID, err)
		}
	}

	if s.feedback != nil {
		ev.Holder = resp.Holder
		ev.Registered = resp.Registered
		ev.Outcome = resp.Outcome
		ev.State = resp.State
		ev.Reason = resp.Reason
		if err := s.feedback.Notify(ctx, ev); err != nil {
			s.logf("feedback failed id=%s err=%v", resp.SwipeID, err)
		}
	}

	if s.obs != nil {
		s.obs.ObserveSwipe(resp.Outcome, decided.Sub(started.UTC()))
	}
}

func (s *SwipeService) debouncer(readerID string) *attendance.Debouncer {
	if s.shared != nil {
		return s.shared
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.perReader[readerID]
	if !ok {
		d = attendance.NewDebouncer(s.debounceCfg)
		s.perReader[readerID] = d
	}
	return d
}

// Suppressed returns how many detections the debouncers dropped.
func (s *SwipeService) Suppressed() uint64 {
	if s.shared != nil {
		return s.shared.Suppressed()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	for _, d := range s.perReader {
		n += d.Suppressed()
	}
	return n
}

func (s *SwipeService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func newSwipeID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
