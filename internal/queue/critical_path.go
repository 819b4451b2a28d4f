package queue

import (
	"time"

	"github.com/gammazero/toposort"

	"github.com/Flickinny11/symphony/internal/models"
)

// CriticalPath returns the longest chain of transitively dependent
// tasks, in execution order. The computation is a single longest-path
// pass over a topological order, so it is linear in tasks plus edges.
// A cyclic dependency graph is rejected with a CycleError instead of a
// truncated path.
func (q *TaskQueue) CriticalPath() ([]*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return CriticalPathOf(q.tasks)
}

// CriticalPathOf computes the critical path over an arbitrary task set.
// Dependencies pointing outside the set are ignored for path purposes.
func CriticalPathOf(tasks map[string]*models.Task) ([]*models.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	var edges []toposort.Edge
	for id, t := range tasks {
		known := 0
		for _, dep := range t.Dependencies {
			if _, ok := tasks[dep]; ok {
				edges = append(edges, toposort.Edge{dep, id})
				known++
			}
		}
		if known == 0 {
			// Root task: anchor it so the sort still yields it.
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CycleError{Err: err}
	}

	// Longest path in a DAG: process nodes in topological order, so
	// every dependency is finalized before its dependents. chain is
	// the hop count ending at a node, weight the summed estimate along
	// that chain; weight breaks hop-count ties so the reported path is
	// the one that actually dominates the schedule.
	chain := make(map[string]int, len(tasks))
	weight := make(map[string]time.Duration, len(tasks))
	prev := make(map[string]string, len(tasks))
	best := ""
	for _, v := range sorted {
		id, ok := v.(string)
		if !ok {
			continue
		}
		t := tasks[id]
		chain[id] = 1
		weight[id] = t.EstimatedTime
		for _, dep := range t.Dependencies {
			if _, known := tasks[dep]; !known {
				continue
			}
			longer := chain[dep]+1 > chain[id]
			heavier := chain[dep]+1 == chain[id] && weight[dep]+t.EstimatedTime > weight[id]
			if longer || heavier {
				chain[id] = chain[dep] + 1
				weight[id] = weight[dep] + t.EstimatedTime
				prev[id] = dep
			}
		}
		if best == "" || chain[id] > chain[best] ||
			(chain[id] == chain[best] && weight[id] > weight[best]) {
			best = id
		}
	}

	var ids []string
	for id := best; ; {
		ids = append(ids, id)
		p, ok := prev[id]
		if !ok {
			break
		}
		id = p
	}

	path := make([]*models.Task, len(ids))
	for i, id := range ids {
		path[len(ids)-1-i] = tasks[id].Clone()
	}
	return path, nil
}
