package attendance

import (
	"context"
	"fmt"
	"sort"
)

// ReconcileReport summarizes one Reconcile pass.
type ReconcileReport struct {
	// Badges is how many distinct badges were checked.
	Badges int
	// Repaired lists badges whose Status row disagreed with the ledger and
	// was rewritten.
	Repaired []string
	// Flushed lists badges whose pending status write was landed.
	Flushed []string
	// Irregular lists badges whose ledger history does not alternate
	// starting with IN.  Those rows are left alone; the ledger is never
	// rewritten.
	Irregular []string
}

type ledgerTail struct {
	last      Action
	irregular bool
}

// Reconcile makes every Status row agree with the ledger: a badge's state is
// the target of its last ledger action, or OUT when it has none.  It repairs
// drift left by crashes between the ledger append and the status write.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport

	entries, err := e.ledger.Entries(ctx, EntryFilter{})
	if err != nil {
		return rep, fmt.Errorf("Reconcile: %w", err)
	}
	tails := make(map[string]*ledgerTail)
	for _, ent := range entries {
		t, ok := tails[ent.BadgeID]
		if !ok {
			t = &ledgerTail{irregular: ent.Action != ActionIn}
			tails[ent.BadgeID] = t
		} else if t.last == ent.Action {
			t.irregular = true
		}
		t.last = ent.Action
	}

	badges, err := e.status.Badges(ctx)
	if err != nil {
		return rep, fmt.Errorf("Reconcile: %w", err)
	}
	ids := make(map[string]struct{}, len(tails)+len(badges))
	for id := range tails {
		ids[id] = struct{}{}
	}
	for _, id := range badges {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		rep.Badges++
		if t, ok := tails[id]; ok && t.irregular {
			rep.Irregular = append(rep.Irregular, id)
		}
		repaired, flushed, err := e.reconcileOne(ctx, id)
		if err != nil {
			return rep, fmt.Errorf("Reconcile %s: %w", id, err)
		}
		if repaired {
			rep.Repaired = append(rep.Repaired, id)
		}
		if flushed {
			rep.Flushed = append(rep.Flushed, id)
		}
	}
	if e.logger != nil {
		e.logger.Printf("attendance: reconcile badges=%d repaired=%d flushed=%d irregular=%d",
			rep.Badges, len(rep.Repaired), len(rep.Flushed), len(rep.Irregular))
	}
	return rep, nil
}

// reconcileOne compares one badge under its lock.  The ledger tail is read
// again there: a swipe accepted since the full scan is the newer truth.
func (e *Engine) reconcileOne(ctx context.Context, badgeID string) (repaired, flushed bool, err error) {
	unlock := e.locks.Lock(badgeID)
	defer unlock()

	want, name := StateOut, ""
	tail, err := e.ledger.Entries(ctx, EntryFilter{BadgeID: badgeID, Limit: 1})
	if err != nil {
		return false, false, err
	}
	if len(tail) == 1 {
		want, name = tail[0].Action.Target(), tail[0].HolderName
	}

	if isPending(e.status.Pending(), badgeID) {
		if err := e.status.Flush(ctx, badgeID); err != nil {
			return false, false, err
		}
		flushed = true
	}

	e.status.Invalidate(badgeID)
	snap, err := e.status.Get(ctx, badgeID)
	if err != nil {
		return false, flushed, err
	}
	if snap.State == want {
		return false, flushed, nil
	}
	if name == "" {
		name = snap.HolderName
	}
	if err := e.status.Put(ctx, badgeID, name, want); err != nil {
		return false, flushed, err
	}
	return true, flushed, nil
}

func isPending(pending []string, badgeID string) bool {
	i := sort.SearchStrings(pending, badgeID)
	return i < len(pending) && pending[i] == badgeID
}
