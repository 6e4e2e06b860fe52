package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

var (
	ErrInvalidReaderID = errors.New("reader_id is required")
)

// DefaultOfflineAfter is how long a reader may stay silent before
// GET /v1/readers reports it offline.
const DefaultOfflineAfter = 3 * time.Minute

type HeartbeatConfig struct {
	// SwipeLog, when set, supplies the last swipe of each reader.
	SwipeLog     store.SwipeLogStore
	OfflineAfter time.Duration
	Now          func() time.Time
}

// HeartbeatService tracks reader liveness.  Each heartbeat is compared with
// the previous one so a reboot or dropped beats show up in the response,
// and the reader is told its mode and the last swipe the server logged for
// it.
type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
	registry       *ReaderRegistry
	swipeLog       store.SwipeLogStore

	offlineAfter time.Duration
	now          func() time.Time
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *ReaderRegistry, cfg HeartbeatConfig) *HeartbeatService {
	if cfg.OfflineAfter <= 0 {
		cfg.OfflineAfter = DefaultOfflineAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &HeartbeatService{
		heartbeatStore: hs,
		registry:       reg,
		swipeLog:       cfg.SwipeLog,
		offlineAfter:   cfg.OfflineAfter,
		now:            cfg.Now,
	}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	readerID := strings.TrimSpace(req.ReaderID)
	if readerID == "" {
		return types.HeartbeatResponse{}, ErrInvalidReaderID
	}
	now := s.now().UTC()

	reader, known, err := s.registry.Lookup(ctx, readerID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	_ = s.registry.NoteSeen(ctx, readerID, now)

	prev, hadPrev, err := s.heartbeatStore.Latest(ctx, readerID)
	if err != nil {
		return types.HeartbeatResponse{}, fmt.Errorf("Record previous heartbeat: %w", err)
	}

	rec := store.HeartbeatRecord{
		ReaderID:        readerID,
		ReceivedAt:      now,
		FirmwareVersion: strings.TrimSpace(req.FirmwareVersion),
		Uptime:          time.Duration(req.UptimeSeconds) * time.Second,
		RSSIDbm:         req.RSSIDbm,
		IP:              strings.TrimSpace(req.IP),
		Seq:             req.Sequence,
		ReadErrors:      req.ReadErrors,
	}
	if err := s.heartbeatStore.RecordHeartbeat(ctx, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	resp := types.HeartbeatResponse{
		OK:         true,
		Known:      known,
		ReaderID:   readerID,
		ServerTime: now.Format(time.RFC3339Nano),
	}
	if known {
		resp.Mode = string(reader.Mode)
	}
	if hadPrev {
		resp.Rebooted = rec.Uptime < prev.Uptime
		// Sequence numbers restart with the reader.
		if !resp.Rebooted && prev.Seq > 0 && rec.Seq > prev.Seq+1 {
			resp.MissedBeats = rec.Seq - prev.Seq - 1
		}
	}
	if resp.LastSwipe, err = s.lastSwipe(ctx, readerID); err != nil {
		return types.HeartbeatResponse{}, err
	}
	return resp, nil
}

// Readers reports the health of every reader the registry knows.
func (s *HeartbeatService) Readers(ctx context.Context) ([]types.ReaderHealth, error) {
	readers, err := s.registry.Readers(ctx)
	if err != nil {
		return nil, fmt.Errorf("Readers list: %w", err)
	}
	now := s.now().UTC()

	out := make([]types.ReaderHealth, 0, len(readers))
	for _, r := range readers {
		h := types.ReaderHealth{
			ReaderID: r.ReaderID,
			Mode:     string(r.Mode),
			Enabled:  r.Enabled,
		}
		lastSeen := r.LastSeen

		beat, ok, err := s.heartbeatStore.Latest(ctx, r.ReaderID)
		if err != nil {
			return nil, fmt.Errorf("Readers heartbeat %s: %w", r.ReaderID, err)
		}
		if ok {
			h.FirmwareVersion = beat.FirmwareVersion
			h.RSSIDbm = beat.RSSIDbm
			h.ReadErrors = beat.ReadErrors
			if beat.ReceivedAt.After(lastSeen) {
				lastSeen = beat.ReceivedAt
			}
		}
		if !lastSeen.IsZero() {
			h.LastSeen = lastSeen.UTC().Format(time.RFC3339)
			h.Online = now.Sub(lastSeen) < s.offlineAfter
		}
		if h.LastSwipe, err = s.lastSwipe(ctx, r.ReaderID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *HeartbeatService) lastSwipe(ctx context.Context, readerID string) (*types.ReaderSwipe, error) {
	if s.swipeLog == nil {
		return nil, nil
	}
	rec, ok, err := s.swipeLog.LastForReader(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("last swipe %s: %w", readerID, err)
	}
	if !ok {
		return nil, nil
	}
	return &types.ReaderSwipe{
		BadgeID: rec.BadgeID,
		Outcome: rec.Outcome,
		State:   rec.State,
		At:      rec.ReceivedAt.UTC().Format(time.RFC3339),
	}, nil
}
