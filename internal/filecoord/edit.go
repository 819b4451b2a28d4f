package filecoord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Flickinny11/symphony/internal/models"
)

// CoordinateEdit runs one operation through the arbitration pipeline:
// claim the region lock, detect conflicts against in-flight operations
// on the same file, resolve them through the strategy, apply the
// surviving operation to the file snapshot, record it in history and
// broadcast the change. The returned state is the post-apply snapshot.
//
// Lock waits are bounded by the coordinator's timeout and surface as
// LockTimeoutError; an exhausted resolver surfaces as
// ConflictUnresolvedError. Neither touches the file state.
func (c *Coordinator) CoordinateEdit(ctx context.Context, op models.FileOperation) (*models.FileState, error) {
	if err := validateOperation(&op); err != nil {
		return nil, err
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = c.now()
	}

	// Track before locking so concurrent overlapping operations see
	// each other regardless of which one wins its lock first.
	c.mu.Lock()
	c.active[op.ID] = &op
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, op.ID)
		c.mu.Unlock()
	}()

	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	release, err := c.locks.Acquire(lockCtx, op.AgentID, op.Path, op.Range)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewLockTimeoutError(op.Path, op.Range, c.lockWait)
		}
		return nil, err
	}
	defer release()

	c.mu.Lock()
	conflicts := c.conflictsLocked(&op)
	applied := &op
	strategy := ""
	if len(conflicts) > 0 {
		strategy = c.resolver.Name()
		resolved, rerr := c.resolver.Resolve(cloneOperation(&op), conflicts)
		if rerr != nil {
			c.mu.Unlock()
			return nil, NewConflictUnresolvedError(op.Path, conflicts, rerr)
		}
		applied = resolved
		c.resolved += len(conflicts)
	}

	state, ok := c.files[op.Path]
	if !ok {
		state = &models.FileState{Path: op.Path}
		c.files[op.Path] = state
	}
	before := state.Content
	applyOperation(state, applied, c.now())
	c.totalOps++
	c.history = append(c.history, HistoryEntry{
		Op:        *applied,
		Version:   state.Version,
		Conflicts: len(conflicts),
		Strategy:  strategy,
		Summary:   changeSummary(before, state.Content),
		Applied:   state.LastModified,
	})
	snap := *state
	listeners := make([]func(Change), len(c.subs))
	for i, l := range c.subs {
		listeners[i] = l.fn
	}
	c.mu.Unlock()

	if c.logger != nil {
		for _, cf := range conflicts {
			if cf.Severity == models.SeverityHigh {
				c.logger.Warnf("filecoord: %s: high-severity conflict between %s and %s resolved by %s",
					cf.Path, cf.Incoming.AgentID, cf.Existing.AgentID, strategy)
			}
		}
	}

	change := Change{Op: *applied, State: snap, Resolved: len(conflicts), Conflicts: conflicts}
	for _, fn := range listeners {
		fn(change)
	}
	return &snap, nil
}

func validateOperation(op *models.FileOperation) error {
	if op.Path == "" {
		return models.NewValidationError("", "operation %s: path required", op.ID)
	}
	if !op.Type.Valid() {
		return models.NewValidationError("", "operation %s: unknown type %q", op.ID, op.Type)
	}
	if op.Range != nil && (op.Range.Start < 0 || op.Range.End < op.Range.Start) {
		return models.NewValidationError("", "operation %s: malformed range %s", op.ID, op.Range)
	}
	return nil
}

// conflictsLocked collects every in-flight operation on the same path
// whose range overlaps the incoming one. An operation without a bounded
// range conflicts with everything on that file.
func (c *Coordinator) conflictsLocked(op *models.FileOperation) []models.Conflict {
	var conflicts []models.Conflict
	for _, other := range c.active {
		if other.ID == op.ID || other.Path != op.Path {
			continue
		}
		if op.Ranged() && other.Ranged() && !op.Range.Overlaps(*other.Range) {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Path:     op.Path,
			Incoming: cloneOperation(op),
			Existing: cloneOperation(other),
			Severity: conflictSeverity(op, other),
			Detail:   conflictDetail(op, other),
			Detected: c.now(),
		})
	}
	return conflicts
}

// conflictSeverity grades a pair: anything involving a delete is high,
// overlap within one agent's own edits is low, everything else medium.
func conflictSeverity(incoming, existing *models.FileOperation) models.ConflictSeverity {
	if incoming.Type == models.OpDelete || existing.Type == models.OpDelete {
		return models.SeverityHigh
	}
	if incoming.AgentID == existing.AgentID {
		return models.SeverityLow
	}
	return models.SeverityMedium
}

func conflictDetail(incoming, existing *models.FileOperation) string {
	switch {
	case !incoming.Ranged() && !existing.Ranged():
		return "both operations span the whole file"
	case !incoming.Ranged():
		return fmt.Sprintf("whole-file %s contends with %s", incoming.Type, existing.Range)
	case !existing.Ranged():
		return fmt.Sprintf("%s contends with whole-file %s", incoming.Range, existing.Type)
	default:
		return fmt.Sprintf("ranges %s and %s overlap", incoming.Range, existing.Range)
	}
}

// applyOperation mutates the file snapshot: deletes empty the content,
// ranged operations splice their lines, everything else replaces the
// file wholesale. Every apply bumps the version by exactly one.
func applyOperation(state *models.FileState, op *models.FileOperation, ts time.Time) {
	switch {
	case op.Type == models.OpDelete:
		state.Content = ""
	case op.Ranged():
		state.Content = spliceLines(state.Content, *op.Range, op.Content)
	default:
		state.Content = op.Content
	}
	state.Version++
	state.LastAgent = op.AgentID
	state.LastModified = ts
}

// spliceLines replaces the half-open line range with the replacement
// text. Out-of-bounds ranges clamp to the file; an empty replacement
// removes the range.
func spliceLines(content string, r models.LineRange, replacement string) string {
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}

	start := r.Start
	if start > len(lines) {
		start = len(lines)
	}
	end := r.End
	if end > len(lines) {
		end = len(lines)
	}
	if end < start {
		end = start
	}

	var repl []string
	if replacement != "" {
		repl = strings.Split(replacement, "\n")
	}

	out := make([]string, 0, len(lines)-(end-start)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

// changeSummary condenses an apply into insert/delete byte counts.
func changeSummary(before, after string) string {
	if before == after {
		return "no change"
	}
	dmp := diffmatchpatch.New()
	var ins, del int
	for _, d := range dmp.DiffMain(before, after, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			ins += len(d.Text)
		case diffmatchpatch.DiffDelete:
			del += len(d.Text)
		}
	}
	return fmt.Sprintf("+%d/-%d bytes", ins, del)
}

func cloneOperation(op *models.FileOperation) *models.FileOperation {
	clone := *op
	if op.Range != nil {
		r := *op.Range
		clone.Range = &r
	}
	return &clone
}
