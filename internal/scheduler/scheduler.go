package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/graphdiff"
	"github.com/vk/tickflow/internal/topologystore"
)

// ReleaseFunc frees the buffers and safety regions of a deleted node. It is
// supplied by the owner of that state.
type ReleaseFunc func(ctx context.Context, deleted graphdiff.Deleted) error

// Stats summarizes the last prepared tick.
type Stats struct {
	Created   int
	Deleted   int
	Observers int
	Settled   int
	Enabled   int
	Culled    int
	Islands   int
}

// Scheduler runs the per-tick planning passes over one topology store.
// It is driven by a single goroutine and keeps no state between ticks other
// than the last statistics.
type Scheduler struct {
	topo    topologystore.Store
	release ReleaseFunc
	stats   Stats
}

// New creates a scheduler over topo. release may be nil.
func New(topo topologystore.Store, release ReleaseFunc) *Scheduler {
	return &Scheduler{topo: topo, release: release}
}

// Ingest processes one drained diff. Every deleted node is released even if
// an earlier release fails; failures are joined.
func (s *Scheduler) Ingest(ctx context.Context, changes graphdiff.Changes) error {
	logger := ctxlog.FromContext(ctx)
	s.stats = Stats{
		Created:   len(changes.Created),
		Deleted:   len(changes.Deleted),
		Observers: len(changes.Observers),
	}
	if changes.Empty() {
		return nil
	}
	logger.Debug("Ingesting graph diff.", "created", s.stats.Created, "deleted", s.stats.Deleted, "observers", s.stats.Observers)

	var errs []error
	for _, d := range changes.Deleted {
		if s.release == nil {
			continue
		}
		if err := s.release(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("release node %s (%s): %w", d.Node, d.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Prepare settles changed islands, culls and builds the plan for one tick.
func (s *Scheduler) Prepare(ctx context.Context, nodes []NodeInfo, culling bool) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	settled := RecomputeIslands(s.topo)
	if len(settled) > 0 {
		logger.Debug("Recomputed islands.", "settled", settled)
	}
	s.stats.Settled = len(settled)

	flags := Cull(s.topo, nodes, culling)
	plan, err := BuildPlan(s.topo, flags)
	if err != nil {
		return nil, err
	}
	s.stats.Enabled = plan.Len()
	s.stats.Culled = len(plan.Culled)
	s.stats.Islands = len(plan.Islands)
	logger.Debug("Prepared tick plan.", "tasks", s.stats.Enabled, "culled", s.stats.Culled, "islands", s.stats.Islands)
	return plan, nil
}

// Stats returns statistics of the last Ingest and Prepare calls.
func (s *Scheduler) Stats() Stats {
	return s.stats
}
