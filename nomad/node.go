package nomad

import (
	"context"
	"net/http"
)

const (
	EligibilityEligible   = "eligible"
	EligibilityIneligible = "ineligible"
)

// Nodes lists client nodes.
type Nodes struct {
	r Requester
}

// Nodes returns a handle on the nodes list endpoint.
func (c *Client) Nodes() *Nodes {
	return &Nodes{r: c.Requester("nodes")}
}

// NodeListOptions filters Nodes.List.
type NodeListOptions struct {
	Prefix    string
	Filter    string
	Resources *bool
}

// List returns the node stubs matching opts.
func (n *Nodes) List(ctx context.Context, opts NodeListOptions) ([]Record, error) {
	params := Params{
		"prefix":    opts.Prefix,
		"filter":    opts.Filter,
		"resources": opts.Resources,
	}
	return n.r.Records(ctx, http.MethodGet, params, nil)
}

// Node queries and manages a single client node.
type Node struct {
	r Requester
}

// Node returns a handle on the single-node endpoints.
func (c *Client) Node() *Node {
	return &Node{r: c.Requester("node")}
}

// Get returns the node registered under id.
func (n *Node) Get(ctx context.Context, id string) (Record, error) {
	return n.r.Record(ctx, http.MethodGet, nil, nil, id)
}

// Exists reports whether a node with this ID is registered.
func (n *Node) Exists(ctx context.Context, id string) (bool, error) {
	return exists(func() error {
		_, err := n.Get(ctx, id)
		return err
	})
}

// Lookup fetches the node and checks its ID or Name matches id.
func (n *Node) Lookup(ctx context.Context, id string) (Record, error) {
	return lookup(id, n.r.path([]string{id}), func() (Record, error) {
		return n.Get(ctx, id)
	})
}

// Allocations lists the allocations placed on the node.
func (n *Node) Allocations(ctx context.Context, id string) ([]Record, error) {
	return n.r.Records(ctx, http.MethodGet, nil, nil, id, "allocations")
}

// Evaluate creates a new evaluation for the node, forcing the scheduler
// to run for it.
func (n *Node) Evaluate(ctx context.Context, id string) (Record, error) {
	return n.r.Record(ctx, http.MethodPost, nil, nil, id, "evaluate")
}

// Drain toggles drain mode using the legacy enable flag.
func (n *Node) Drain(ctx context.Context, id string, enable bool) (Record, error) {
	return n.r.Record(ctx, http.MethodPost, Params{"enable": enable}, nil, id, "drain")
}

// DrainWithSpec toggles drain mode with a drain spec. An empty spec turns
// draining off.
func (n *Node) DrainWithSpec(ctx context.Context, id string, spec Record, markEligible *bool) (Record, error) {
	return n.r.Record(ctx, http.MethodPost, nil, DrainBody(id, spec, markEligible), id, "drain")
}

// DrainBody builds the drain request. DrainSpec is null unless spec has
// entries, and MarkEligible is only present when set.
func DrainBody(id string, spec Record, markEligible *bool) Record {
	body := Record{"NodeID": id, "DrainSpec": nil}
	if len(spec) > 0 {
		body["DrainSpec"] = spec
	}
	if markEligible != nil {
		body["MarkEligible"] = *markEligible
	}
	return body
}

// SetEligibility marks the node eligible or ineligible for new work.
// Exactly one of eligible and ineligible must be set.
func (n *Node) SetEligibility(ctx context.Context, id string, eligible, ineligible *bool) (Record, error) {
	body, err := EligibilityBody(id, eligible, ineligible)
	if err != nil {
		return nil, err
	}
	return n.r.Record(ctx, http.MethodPost, nil, body, id, "eligibility")
}

// EligibilityBody validates the eligibility flags and builds the request.
func EligibilityBody(id string, eligible, ineligible *bool) (Record, error) {
	switch {
	case eligible != nil && ineligible != nil:
		return nil, invalidParams("eligible and ineligible are mutually exclusive")
	case eligible == nil && ineligible == nil:
		return nil, invalidParams("one of eligible or ineligible is required")
	}

	state := EligibilityIneligible
	if eligible != nil && *eligible {
		state = EligibilityEligible
	}
	if ineligible != nil && !*ineligible {
		state = EligibilityEligible
	}
	return Record{"Eligibility": state, "NodeID": id}, nil
}

// Purge removes the node from the cluster state. A live node can rejoin.
func (n *Node) Purge(ctx context.Context, id string) (Record, error) {
	return n.r.Record(ctx, http.MethodPost, nil, nil, id, "purge")
}
