package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

// ── Status ───────────────────────────────────────────────────────────────────

func statusResponse(snap attendance.Snapshot) types.StatusResponse {
	resp := types.StatusResponse{
		BadgeID:    snap.BadgeID,
		State:      string(snap.State),
		Holder:     snap.HolderName,
		Pending:    snap.Pending,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if !snap.AsOf.IsZero() {
		resp.AsOf = snap.AsOf.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

// ── Records ──────────────────────────────────────────────────────────────────

func recordsResponse(entries []attendance.LedgerEntry) types.RecordsResponse {
	out := types.RecordsResponse{
		Records:    make([]types.RecordJSON, 0, len(entries)),
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, e := range entries {
		out.Records = append(out.Records, recordJSON(e))
	}
	return out
}

func recordJSON(e attendance.LedgerEntry) types.RecordJSON {
	return types.RecordJSON{
		Date:       e.Date,
		Time:       e.Time,
		BadgeID:    e.BadgeID,
		Name:       e.HolderName,
		Department: e.Department,
		PersonalID: e.PersonalID,
		Action:     string(e.Action),
	}
}
