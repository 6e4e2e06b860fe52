package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// RecordsHeader is the fixed column layout of the Records sheet.
var RecordsHeader = store.Row{"date", "time", "badgeId", "name", "department", "personalId", "action"}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// LedgerEntry is one accepted swipe in the Records sheet.
type LedgerEntry struct {
	Date       string // YYYY-MM-DD
	Time       string // HH:MM:SS
	BadgeID    string
	HolderName string
	Department string
	PersonalID string
	Action     Action
}

// NewLedgerEntry stamps an entry for holder at t, formatted in loc.
func NewLedgerEntry(holder Holder, action Action, t time.Time, loc *time.Location) LedgerEntry {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return LedgerEntry{
		Date:       local.Format(DateLayout),
		Time:       local.Format(TimeLayout),
		BadgeID:    holder.BadgeID,
		HolderName: holder.Name,
		Department: holder.Department,
		PersonalID: holder.PersonalID,
		Action:     action,
	}
}

// Timestamp parses the entry's date and time back in loc.
func (e LedgerEntry) Timestamp(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc)
}

func (e LedgerEntry) row() store.Row {
	return store.Row{e.Date, e.Time, e.BadgeID, e.HolderName, e.Department, e.PersonalID, string(e.Action)}
}

func entryFromRow(r store.Row) LedgerEntry {
	return LedgerEntry{
		Date:       r.Cell(0),
		Time:       r.Cell(1),
		BadgeID:    strings.ToUpper(strings.TrimSpace(r.Cell(2))),
		HolderName: r.Cell(3),
		Department: r.Cell(4),
		PersonalID: r.Cell(5),
		Action:     Action(strings.ToUpper(strings.TrimSpace(r.Cell(6)))),
	}
}

// Ledger appends accepted events to the Records sheet.  It never updates or
// deletes a row.
type Ledger struct {
	records store.Table
}

func NewLedger(records store.Table) *Ledger {
	return &Ledger{records: records}
}

// Append writes entry as a new last row.
func (l *Ledger) Append(ctx context.Context, entry LedgerEntry) error {
	if entry.Action != ActionIn && entry.Action != ActionOut {
		return fmt.Errorf("Append: %w", ErrInvalidAction)
	}
	if err := l.records.AppendRow(ctx, entry.row()); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// EntryFilter narrows Entries.  Zero values match everything.
type EntryFilter struct {
	BadgeID string
	// Limit keeps only the most recent Limit matches.
	Limit int
}

// Entries returns ledger rows in append order.  Rows whose action is not
// IN or OUT are skipped.
func (l *Ledger) Entries(ctx context.Context, f EntryFilter) ([]LedgerEntry, error) {
	rows, err := l.records.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	out := make([]LedgerEntry, 0, len(rows))
	for _, r := range rows {
		e := entryFromRow(r)
		if e.Action != ActionIn && e.Action != ActionOut {
			continue
		}
		if f.BadgeID != "" && e.BadgeID != f.BadgeID {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}
