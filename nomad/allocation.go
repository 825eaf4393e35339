package nomad

import (
	"context"
	"net/http"
)

// Allocations queries allocations across the cluster. The agent's local
// region is used unless the client has a default region.
type Allocations struct {
	r Requester
}

// Allocations returns a handle on the allocations list endpoint.
func (c *Client) Allocations() *Allocations {
	return &Allocations{r: c.Requester("allocations")}
}

// AllocationListOptions filters Allocations.List.
type AllocationListOptions struct {
	Prefix     string
	Filter     string
	Namespace  string // "*" lists every namespace
	Resources  *bool
	TaskStates *bool
}

// List returns the allocations matching opts.
func (a *Allocations) List(ctx context.Context, opts AllocationListOptions) ([]Record, error) {
	params := Params{
		"prefix":      opts.Prefix,
		"filter":      opts.Filter,
		"namespace":   opts.Namespace,
		"resources":   opts.Resources,
		"task_states": opts.TaskStates,
	}
	return a.r.Records(ctx, http.MethodGet, params, nil)
}

// Allocation operates on a single allocation.
type Allocation struct {
	r Requester
}

// Allocation returns a handle on the single-allocation endpoints.
func (c *Client) Allocation() *Allocation {
	return &Allocation{r: c.Requester("allocation")}
}

func (a *Allocation) Get(ctx context.Context, id string) (Record, error) {
	return a.r.Record(ctx, http.MethodGet, nil, nil, id)
}

// Stop stops the allocation and lets the scheduler reschedule it. The
// result carries the created evaluation ID.
func (a *Allocation) Stop(ctx context.Context, id string) (Record, error) {
	return a.r.Record(ctx, http.MethodPost, nil, nil, id, "stop")
}
