package nomad

import (
	"context"
	"net/http"
)

// Jobs lists jobs registered with the cluster.
type Jobs struct {
	r Requester
}

// Jobs returns a handle on the jobs list endpoint.
func (c *Client) Jobs() *Jobs {
	return &Jobs{r: c.Requester("jobs")}
}

// JobListOptions filters Jobs.List. Empty fields are not sent.
type JobListOptions struct {
	Prefix    string
	Namespace string // "*" lists every namespace
	Filter    string
}

// List returns the job stubs matching opts.
func (j *Jobs) List(ctx context.Context, opts JobListOptions) ([]Record, error) {
	params := Params{
		"prefix":    opts.Prefix,
		"namespace": opts.Namespace,
		"filter":    opts.Filter,
	}
	return j.r.Records(ctx, http.MethodGet, params, nil)
}

// Job performs operations on a single job.
type Job struct {
	r Requester
}

// Job returns a handle on the single-job endpoints.
func (c *Client) Job() *Job {
	return &Job{r: c.Requester("job")}
}

// Get returns the job's specification and status. An empty namespace uses
// the client default.
func (j *Job) Get(ctx context.Context, id, namespace string) (Record, error) {
	return j.r.Record(ctx, http.MethodGet, Params{"namespace": namespace}, nil, id)
}

// Exists reports whether a job with this ID is registered. Errors other
// than not-found are returned.
func (j *Job) Exists(ctx context.Context, id string) (bool, error) {
	return j.ExistsIn(ctx, id, "")
}

// ExistsIn is Exists for a specific namespace. An empty namespace uses the
// client default.
func (j *Job) ExistsIn(ctx context.Context, id, namespace string) (bool, error) {
	return exists(func() error {
		_, err := j.Get(ctx, id, namespace)
		return err
	})
}

// Lookup fetches the job and checks that it really is the job asked for,
// by ID or Name. A mismatch is reported as not found.
func (j *Job) Lookup(ctx context.Context, id string) (Record, error) {
	return lookup(id, j.r.path([]string{id}), func() (Record, error) {
		return j.Get(ctx, id, "")
	})
}

// Versions returns every known version of the job.
func (j *Job) Versions(ctx context.Context, id string) (Record, error) {
	return j.r.Record(ctx, http.MethodGet, nil, nil, id, "versions")
}

// Allocations lists the allocations belonging to the job.
func (j *Job) Allocations(ctx context.Context, id string) ([]Record, error) {
	return j.r.Records(ctx, http.MethodGet, nil, nil, id, "allocations")
}

// Evaluations lists the evaluations belonging to the job.
func (j *Job) Evaluations(ctx context.Context, id string) ([]Record, error) {
	return j.r.Records(ctx, http.MethodGet, nil, nil, id, "evaluations")
}

// Deployments lists the job's deployments.
func (j *Job) Deployments(ctx context.Context, id string) ([]Record, error) {
	return j.r.Records(ctx, http.MethodGet, nil, nil, id, "deployments")
}

// Deployment returns the job's most recent deployment, or nil when the job
// has never been deployed.
func (j *Job) Deployment(ctx context.Context, id string) (Record, error) {
	return j.r.OptionalRecord(ctx, http.MethodGet, nil, nil, id, "deployment")
}

// Summary returns the job's allocation summary.
func (j *Job) Summary(ctx context.Context, id string) (Record, error) {
	return j.r.Record(ctx, http.MethodGet, nil, nil, id, "summary")
}

// Register creates the job, or updates it when the ID is already taken.
// job is the full request payload, usually {"Job": {...}}.
func (j *Job) Register(ctx context.Context, id string, job any) (Record, error) {
	return j.r.Record(ctx, http.MethodPost, nil, job, id)
}

// Evaluate forces a new evaluation of the job.
func (j *Job) Evaluate(ctx context.Context, id string) (Record, error) {
	return j.r.Record(ctx, http.MethodPost, nil, nil, id, "evaluate")
}

// Plan runs the scheduler in dry-run mode for job.
func (j *Job) Plan(ctx context.Context, id string, job Record, diff, policyOverride bool) (Record, error) {
	return j.r.Record(ctx, http.MethodPost, nil, PlanBody(job, diff, policyOverride), id, "plan")
}

// PlanBody copies job and adds Diff and PolicyOverride unless job already
// carries them.
func PlanBody(job Record, diff, policyOverride bool) Record {
	body := make(Record, len(job)+2)
	for k, v := range job {
		body[k] = v
	}
	if _, ok := body["Diff"]; !ok {
		body["Diff"] = diff
	}
	if _, ok := body["PolicyOverride"]; !ok {
		body["PolicyOverride"] = policyOverride
	}
	return body
}

// ForcePeriodic launches a new instance of a periodic job immediately,
// even if it violates prohibit_overlap.
func (j *Job) ForcePeriodic(ctx context.Context, id string) (Record, error) {
	return j.r.Record(ctx, http.MethodPost, nil, nil, id, "periodic", "force")
}

// Dispatch starts a new instance of a parameterized job. payload must
// already be base64 encoded when the job expects one.
func (j *Job) Dispatch(ctx context.Context, id, payload string, meta map[string]string) (Record, error) {
	body := map[string]any{"Meta": meta, "Payload": nilIfEmpty(payload)}
	return j.r.Record(ctx, http.MethodPost, nil, body, id, "dispatch")
}

// Revert rolls the job back to version. When enforcePriorVersion is set
// the server only reverts if the current version matches it.
func (j *Job) Revert(ctx context.Context, id string, version int, enforcePriorVersion *int) (Record, error) {
	body := map[string]any{
		"JobID":               id,
		"JobVersion":          version,
		"EnforcePriorVersion": enforcePriorVersion,
	}
	return j.r.Record(ctx, http.MethodPost, nil, body, id, "revert")
}

// Stable marks a job version as stable or unstable.
func (j *Job) Stable(ctx context.Context, id string, version int, stable bool) (Record, error) {
	body := map[string]any{
		"JobID":      id,
		"JobVersion": version,
		"Stable":     stable,
	}
	return j.r.Record(ctx, http.MethodPost, nil, body, id, "stable")
}

// Deregister stops the job and all of its allocations. With purge unset
// the server decides; true purges immediately, false leaves the job to the
// garbage collector. purge accepts anything ParseBool does, so a value that
// is not a boolean fails before any request is sent.
func (j *Job) Deregister(ctx context.Context, id string, purge any) (Record, error) {
	p, err := ParseBool("purge", purge)
	if err != nil {
		return nil, err
	}
	return j.r.Record(ctx, http.MethodDelete, Params{"purge": p}, nil, id)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// exists turns a not-found outcome into false.
func exists(get func() error) (bool, error) {
	err := get()
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// lookup fetches a record and rejects it when it is not the one named id.
func lookup(id, path string, get func() (Record, error)) (Record, error) {
	rec, err := get()
	if err != nil {
		return nil, err
	}
	if !rec.Matches(id) {
		return nil, &NotFoundError{Identity: id, Path: path}
	}
	return rec, nil
}
