package nomad

import (
	"context"
	"net/http"
)

// ACL manages ACL tokens and policies.
type ACL struct {
	r Requester
}

// ACL returns a handle on the acl endpoints.
func (c *Client) ACL() *ACL {
	return &ACL{r: c.Requester("acl")}
}

// Bootstrap creates the initial management token. It only succeeds once
// per cluster.
func (a *ACL) Bootstrap(ctx context.Context) (Record, error) {
	return a.r.Record(ctx, http.MethodPost, nil, nil, "bootstrap")
}

func (a *ACL) Tokens(ctx context.Context) ([]Record, error) {
	return a.r.Records(ctx, http.MethodGet, nil, nil, "tokens")
}

// Token returns the token with the given accessor ID.
func (a *ACL) Token(ctx context.Context, accessorID string) (Record, error) {
	return a.r.For(accessorID).Record(ctx, http.MethodGet, nil, nil, "token", accessorID)
}

// SelfToken returns the token the client authenticates with.
func (a *ACL) SelfToken(ctx context.Context) (Record, error) {
	return a.r.For("self").Record(ctx, http.MethodGet, nil, nil, "token", "self")
}

func (a *ACL) CreateToken(ctx context.Context, token Record) (Record, error) {
	return a.r.Record(ctx, http.MethodPost, nil, token, "token")
}

func (a *ACL) UpdateToken(ctx context.Context, accessorID string, token Record) (Record, error) {
	return a.r.For(accessorID).Record(ctx, http.MethodPost, nil, token, "token", accessorID)
}

// DeleteToken reports true only when the server answered 2xx.
func (a *ACL) DeleteToken(ctx context.Context, accessorID string) (bool, error) {
	return a.r.For(accessorID).OK(ctx, http.MethodDelete, nil, nil, "token", accessorID)
}

func (a *ACL) Policies(ctx context.Context) ([]Record, error) {
	return a.r.Records(ctx, http.MethodGet, nil, nil, "policies")
}

func (a *ACL) Policy(ctx context.Context, name string) (Record, error) {
	return a.r.For(name).Record(ctx, http.MethodGet, nil, nil, "policy", name)
}

// CreatePolicy writes policy under name. The endpoint has no response
// body, so only success is reported.
func (a *ACL) CreatePolicy(ctx context.Context, name string, policy Record) (bool, error) {
	return a.r.For(name).OK(ctx, http.MethodPost, nil, policy, "policy", name)
}

// UpdatePolicy is the same upsert as CreatePolicy.
func (a *ACL) UpdatePolicy(ctx context.Context, name string, policy Record) (bool, error) {
	return a.CreatePolicy(ctx, name, policy)
}

func (a *ACL) DeletePolicy(ctx context.Context, name string) (bool, error) {
	return a.r.For(name).OK(ctx, http.MethodDelete, nil, nil, "policy", name)
}
