package attendance

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// UsersHeader is the fixed column layout of the Users sheet.
var UsersHeader = store.Row{"badgeId", "name", "department", "personalId"}

// Directory resolves badges to holders from the Users sheet.  It never
// writes; the sheet is maintained by hand.
type Directory struct {
	users store.Table
}

func NewDirectory(users store.Table) *Directory {
	return &Directory{users: users}
}

// Lookup returns the holder for badgeID.  found=false with a nil error means
// the badge is not registered; callers fall back to UnregisteredHolder.
func (d *Directory) Lookup(ctx context.Context, badgeID string) (Holder, bool, error) {
	rowNum, found, err := d.users.FindRow(ctx, badgeID)
	if err != nil {
		return Holder{}, false, fmt.Errorf("Lookup find: %w", err)
	}
	if !found {
		return Holder{}, false, nil
	}
	row, err := d.users.ReadRow(ctx, rowNum)
	if err != nil {
		return Holder{}, false, fmt.Errorf("Lookup read row %d: %w", rowNum, err)
	}
	return Holder{
		BadgeID:    badgeID,
		Name:       row.Cell(1),
		Department: row.Cell(2),
		PersonalID: row.Cell(3),
	}, true, nil
}

// Resolve is Lookup with the unregistered fallback applied.
func (d *Directory) Resolve(ctx context.Context, badgeID string) (Holder, error) {
	h, found, err := d.Lookup(ctx, badgeID)
	if err != nil {
		return Holder{}, err
	}
	if !found {
		return UnregisteredHolder(badgeID), nil
	}
	return h, nil
}
