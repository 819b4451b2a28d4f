package conductor

import (
	"github.com/Flickinny11/symphony/internal/filecoord"
	"github.com/Flickinny11/symphony/internal/pool"
	"github.com/Flickinny11/symphony/internal/sharedmem"
)

// ExtendedConductor layers file-level arbitration over the base loop:
// every file_update event is routed through a filecoord.Coordinator,
// dispatch is weighted by the outstanding critical path, the refill
// tick runs faster, and a periodic coordination tick republishes file
// dependency analysis to shared memory.
type ExtendedConductor struct {
	*Conductor
	coord *filecoord.Coordinator
}

// ExtendedOptions tune extended conductor construction.
type ExtendedOptions struct {
	Options
	// Coordinator arbitrates file edits; nil builds one from the
	// coordination config.
	Coordinator *filecoord.Coordinator
}

// NewExtended creates an extended conductor with default options.
func NewExtended(agentPool *pool.AgentPool, bridge *sharedmem.Bridge, exec Executor) *ExtendedConductor {
	return NewExtendedWithOptions(agentPool, bridge, exec, ExtendedOptions{})
}

// NewExtendedWithOptions creates an extended conductor.
func NewExtendedWithOptions(agentPool *pool.AgentPool, bridge *sharedmem.Bridge, exec Executor, opts ExtendedOptions) *ExtendedConductor {
	cc := normalizeCoordination(opts.Coordination)

	coord := opts.Coordinator
	if coord == nil {
		var lg filecoord.Logger
		if opts.Logger != nil {
			lg = opts.Logger
		}
		coord = filecoord.NewWithOptions(filecoord.Options{
			LockTimeout: cc.LockTimeout,
			Logger:      lg,
		})
	}

	base := NewWithOptions(agentPool, bridge, exec, opts.Options)
	base.tick = cc.ExtendedTick
	base.fileTick = cc.FileTick
	base.weighted = true
	base.arbiter = coord

	if base.metrics != nil {
		coord.Subscribe(func(ch filecoord.Change) {
			for _, cf := range ch.Conflicts {
				base.metrics.IncConflictResolved(string(cf.Severity))
			}
		})
	}

	return &ExtendedConductor{Conductor: base, coord: coord}
}

// Coordinator exposes the file coordinator for inspection.
func (e *ExtendedConductor) Coordinator() *filecoord.Coordinator {
	return e.coord
}
