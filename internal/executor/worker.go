package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/scheduler"
)

type parallelRun struct {
	plan     *scheduler.Plan
	run      RunFunc
	fence    *Fence
	depCount []atomic.Int32
	ready    chan int
	wg       sync.WaitGroup
}

func (e *Executor) dispatchParallel(ctx context.Context, plan *scheduler.Plan, run RunFunc, f *Fence) {
	n := len(plan.Tasks)
	pr := &parallelRun{
		plan:     plan,
		run:      run,
		fence:    f,
		depCount: make([]atomic.Int32, n),
		// Every task is sent exactly once, so sends never block.
		ready: make(chan int, n),
	}
	pr.wg.Add(n)
	for i, t := range plan.Tasks {
		pr.depCount[i].Store(int32(len(t.Deps)))
	}
	for i, t := range plan.Tasks {
		if len(t.Deps) == 0 {
			pr.ready <- i
		}
	}

	for id := range e.workerCount(n) {
		go e.worker(ctx, pr, id)
	}
	go func() {
		pr.wg.Wait()
		close(pr.ready)
		f.finish()
	}()
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, pr *parallelRun, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for i := range pr.ready {
		task := pr.plan.Tasks[i]
		e.runTask(ctx, task, pr.run, pr.fence)

		for _, d := range task.Dependents {
			if pr.depCount[d].Add(-1) == 0 {
				logger.Debug("Unlocking dependent node.", "workerID", workerID, "dependentID", pr.plan.Tasks[d].Node.String())
				pr.ready <- d
			}
		}
		pr.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
