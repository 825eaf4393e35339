package nomad

import (
	"context"
	"net/http"
)

// System exposes cluster maintenance endpoints. Most users never need them.
type System struct {
	r Requester
}

// System returns a handle on the system endpoints.
func (c *Client) System() *System {
	return &System{r: c.Requester("system")}
}

// GarbageCollect triggers garbage collection of jobs, evaluations,
// allocations and nodes.
func (s *System) GarbageCollect(ctx context.Context) (bool, error) {
	return s.r.OK(ctx, http.MethodPut, nil, nil, "gc")
}

// ReconcileSummaries rebuilds the summaries of all registered jobs.
func (s *System) ReconcileSummaries(ctx context.Context) (bool, error) {
	return s.r.OK(ctx, http.MethodPut, nil, nil, "reconcile", "summaries")
}
