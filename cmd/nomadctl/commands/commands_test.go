package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/go-nomad/nomad"
	"github.com/rflorenc/go-nomad/nomad/nomadtest"
)

// execute runs nomadctl against srv with no environment and no config file.
func execute(t *testing.T, srv *nomadtest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cmd := newRoot(func(string) string { return "" })
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if srv != nil {
		args = append(args, "--address="+srv.URL)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newServer(t *testing.T) *nomadtest.Server {
	t.Helper()
	srv := nomadtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddJob(map[string]any{"ID": "web", "Type": "service"})
	return srv
}

func TestRoot_Subcommands(t *testing.T) {
	root := newRoot(func(string) string { return "" })
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"job", "node", "alloc", "acl", "sentinel", "system", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-02")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "nomadctl 1.2.3 (commit: abc123, built: 2026-01-02)\n", out)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"not found", &nomad.NotFoundError{Identity: "web"}, ExitNotFound},
		{"wrapped not found", fmt.Errorf("status: %w", &nomad.NotFoundError{}), ExitNotFound},
		{"invalid parameters", &nomad.InvalidParametersError{Reason: "purge"}, ExitInvalidParams},
		{"api error", &nomad.APIError{StatusCode: 500}, ExitError},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestJobList_Formats(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, srv, "job", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "service")

	out, err = execute(t, srv, "job", "list", "-o", "json")
	require.NoError(t, err)
	var jobs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "web", jobs[0]["ID"])

	out, err = execute(t, srv, "job", "list", "-o", "yaml")
	require.NoError(t, err)
	jobs = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, 0, jobs[0]["Version"])
}

func TestInvalidOutputFormat(t *testing.T) {
	srv := newServer(t)
	_, err := execute(t, srv, "job", "list", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
	assert.Empty(t, srv.Requests())
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, nil, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestJobStatus(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, srv, "job", "status", "web", "-o", "json")
	require.NoError(t, err)
	var job map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, "web", job["ID"])

	_, err = execute(t, srv, "job", "status", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestJobExists(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, srv, "job", "exists", "web")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, srv, "job", "exists", "missing")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestJobDeregister_Purge(t *testing.T) {
	t.Run("invalid purge sends nothing", func(t *testing.T) {
		srv := newServer(t)
		_, err := execute(t, srv, "job", "deregister", "web", "--purge=maybe")
		require.Error(t, err)
		assert.Equal(t, ExitInvalidParams, ExitCode(err))
		assert.Empty(t, srv.Requests())
		assert.NotNil(t, srv.Job("web"))
	})

	t.Run("bare flag purges", func(t *testing.T) {
		srv := newServer(t)
		_, err := execute(t, srv, "job", "deregister", "web", "--purge")
		require.NoError(t, err)
		assert.Nil(t, srv.Job("web"))
		assert.Equal(t, "true", srv.LastRequest().Query.Get("purge"))
	})

	t.Run("unset leaves the job stopped", func(t *testing.T) {
		srv := newServer(t)
		_, err := execute(t, srv, "job", "deregister", "web")
		require.NoError(t, err)
		require.NotNil(t, srv.Job("web"))
		assert.Equal(t, true, srv.Job("web")["Stop"])
		assert.False(t, srv.LastRequest().Query.Has("purge"))
	})
}

func TestJobRegister_FromFile(t *testing.T) {
	srv := newServer(t)
	path := filepath.Join(t.TempDir(), "api.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Job": {"ID": "api", "Type": "batch"}}`), 0o644))

	out, err := execute(t, srv, "job", "register", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "EvalID")
	require.NotNil(t, srv.Job("api"))
	assert.Equal(t, "batch", srv.Job("api")["Type"])
}

func TestJobRevert_BadVersion(t *testing.T) {
	srv := newServer(t)
	_, err := execute(t, srv, "job", "revert", "web", "latest")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidParams, ExitCode(err))
}

func TestJobExportImport(t *testing.T) {
	src := newServer(t)
	dir := t.TempDir()

	_, err := execute(t, src, "job", "export", dir, "--format", "yaml")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "default__web.yaml"))

	dst := nomadtest.NewServer()
	t.Cleanup(dst.Close)

	out, err := execute(t, dst, "job", "import", dir, "--dry-run", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"create"`)
	assert.Nil(t, dst.Job("web"))

	_, err = execute(t, dst, "job", "import", dir)
	require.NoError(t, err)
	assert.NotNil(t, dst.Job("web"))
}

func TestJobExport_BadFormat(t *testing.T) {
	srv := newServer(t)
	_, err := execute(t, srv, "job", "export", t.TempDir(), "--format", "toml")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidParams, ExitCode(err))
}

func TestNodeDrain_RequiresOneDirection(t *testing.T) {
	srv := newServer(t)
	id := srv.AddNode(nil)

	_, err := execute(t, srv, "node", "drain", id)
	assert.Equal(t, ExitInvalidParams, ExitCode(err))

	_, err = execute(t, srv, "node", "drain", id, "--enable", "--disable")
	assert.Equal(t, ExitInvalidParams, ExitCode(err))
	assert.Empty(t, srv.Requests())
}

func TestNodeDrain_Enable(t *testing.T) {
	srv := newServer(t)
	id := srv.AddNode(nil)

	_, err := execute(t, srv, "node", "drain", id, "--enable", "--deadline", "10m")
	require.NoError(t, err)
	assert.Equal(t, true, srv.Node(id)["Drain"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(srv.LastRequest().Body, &body))
	spec, ok := body["DrainSpec"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 600e9, spec["Deadline"])
}

func TestNodeEligibility(t *testing.T) {
	srv := newServer(t)
	id := srv.AddNode(nil)

	_, err := execute(t, srv, "node", "eligibility", id, "--disable")
	require.NoError(t, err)
	assert.Equal(t, "ineligible", srv.Node(id)["SchedulingEligibility"])

	_, err = execute(t, srv, "node", "eligibility", id)
	assert.Equal(t, ExitInvalidParams, ExitCode(err))
}

func TestAllocList_TaskStates(t *testing.T) {
	srv := newServer(t)
	srv.AddAllocation(map[string]any{"JobID": "web"})

	_, err := execute(t, srv, "alloc", "list", "--task-states=false")
	require.NoError(t, err)
	assert.Equal(t, "false", srv.LastRequest().Query.Get("task_states"))

	_, err = execute(t, srv, "alloc", "list", "--task-states=sometimes")
	assert.Equal(t, ExitInvalidParams, ExitCode(err))
}

func TestACLPolicyApply(t *testing.T) {
	srv := newServer(t)
	rules := filepath.Join(t.TempDir(), "readonly.hcl")
	require.NoError(t, os.WriteFile(rules, []byte(`namespace "default" { policy = "read" }`), 0o644))

	out, err := execute(t, srv, "acl", "policy", "apply", "readonly", rules, "--description", "read only")
	require.NoError(t, err)
	assert.Equal(t, "policy readonly applied\n", out)

	out, err = execute(t, srv, "acl", "policy", "info", "readonly", "-o", "json")
	require.NoError(t, err)
	var policy map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &policy))
	assert.Equal(t, "read only", policy["Description"])
	assert.Contains(t, policy["Rules"], `policy = "read"`)
}

func TestSystemGC(t *testing.T) {
	srv := newServer(t)
	out, err := execute(t, srv, "system", "gc", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, out)
	assert.Equal(t, 1, srv.GCRuns())
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", cell(nil))
	assert.Equal(t, "web", cell("web"))
	assert.Equal(t, `{"a":1}`, cell(map[string]any{"a": 1}))

	long := cell([]any{strings.Repeat("é", 100)}).(string)
	assert.True(t, utf8.ValidString(long))
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Equal(t, 60, utf8.RuneCountInString(long))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger, err = newLogger(&buf, "DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	logger.Debug().Str("job", "web").Msg("registered")
	assert.Contains(t, buf.String(), "registered")
	assert.NotContains(t, buf.String(), "\x1b[")

	_, err = newLogger(&buf, "loud")
	assert.Error(t, err)
}
