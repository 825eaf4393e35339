package nomad

import (
	"context"
	"net/http"
)

// Sentinel manages Sentinel policies. Enterprise only; open source agents
// answer these endpoints with an error.
type Sentinel struct {
	r Requester
}

// Sentinel returns a handle on the sentinel endpoints.
func (c *Client) Sentinel() *Sentinel {
	return &Sentinel{r: c.Requester("sentinel")}
}

func (s *Sentinel) Policies(ctx context.Context) ([]Record, error) {
	return s.r.Records(ctx, http.MethodGet, nil, nil, "policies")
}

func (s *Sentinel) Policy(ctx context.Context, name string) (Record, error) {
	return s.r.For(name).Record(ctx, http.MethodGet, nil, nil, "policy", name)
}

// CreatePolicy writes policy under name.
func (s *Sentinel) CreatePolicy(ctx context.Context, name string, policy Record) (bool, error) {
	return s.r.For(name).OK(ctx, http.MethodPost, nil, policy, "policy", name)
}

func (s *Sentinel) UpdatePolicy(ctx context.Context, name string, policy Record) (bool, error) {
	return s.CreatePolicy(ctx, name, policy)
}

func (s *Sentinel) DeletePolicy(ctx context.Context, name string) (bool, error) {
	return s.r.For(name).OK(ctx, http.MethodDelete, nil, nil, "policy", name)
}
