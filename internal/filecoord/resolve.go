package filecoord

import (
	"fmt"

	"github.com/Flickinny11/symphony/internal/models"
)

// ResolutionStrategy adjusts an incoming operation so it can be applied
// despite conflicting with tracked operations. Strategies are best
// effort: none of them guarantees a semantically correct merge, they
// only decide how an overlapping edit lands.
type ResolutionStrategy interface {
	// Name identifies the strategy in history entries and logs.
	Name() string
	// Resolve returns the operation to apply in place of op, or an
	// error when the strategy has nothing left to try.
	Resolve(op *models.FileOperation, conflicts []models.Conflict) (*models.FileOperation, error)
}

// LineShiftStrategy resolves range overlaps by shifting the incoming
// operation's start line down by one and applying it there. It makes no
// attempt to reconcile content; it only keeps both edits in the file.
type LineShiftStrategy struct{}

// Name implements ResolutionStrategy.
func (LineShiftStrategy) Name() string { return "line-shift" }

// Resolve implements ResolutionStrategy. Operations without a bounded
// range cannot be shifted, so conflicts on them are unresolvable here.
func (LineShiftStrategy) Resolve(op *models.FileOperation, conflicts []models.Conflict) (*models.FileOperation, error) {
	if !op.Ranged() {
		return nil, fmt.Errorf("operation %s spans the whole file, nothing to shift", op.ID)
	}

	shifted := *op
	r := *op.Range
	r.Start++
	if r.End < r.Start {
		r.End = r.Start
	}
	shifted.Range = &r
	return &shifted, nil
}
