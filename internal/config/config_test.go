package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
current: staging
clusters:
  - name: staging
    address: http://staging:4646
    region: eu
    namespace: web
    timeout: 10s
    retries: 2
  - name: prod
    address: https://prod:4646
    token: prod-secret
    insecure: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func TestLoad(t *testing.T) {
	file, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "staging", file.Current)
	require.Len(t, file.Clusters, 2)
	assert.Equal(t, 10*time.Second, file.Clusters[0].Timeout)
	assert.Equal(t, 2, file.Clusters[0].Retries)
	assert.True(t, file.Clusters[1].Insecure)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "clusters: [oops"},
		{"unnamed cluster", "clusters:\n  - address: http://x:4646\n"},
		{"duplicate", "clusters:\n  - name: a\n  - name: a\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestFile_Select(t *testing.T) {
	file, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	c, err := file.Select("")
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Name)

	c, err = file.Select("prod")
	require.NoError(t, err)
	assert.Equal(t, "prod-secret", c.Token)

	_, err = file.Select("dev")
	assert.Error(t, err)

	single := &File{Clusters: []Cluster{{Name: "only"}}}
	c, err = single.Select("")
	require.NoError(t, err)
	assert.Equal(t, "only", c.Name)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	tests := []struct {
		name   string
		args   []string
		env    map[string]string
		expect Cluster
	}{
		{
			name: "file only",
			args: []string{"--config", path},
			expect: Cluster{
				Name: "staging", Address: "http://staging:4646", Region: "eu",
				Namespace: "web", Timeout: 10 * time.Second, Retries: 2,
			},
		},
		{
			name: "env overrides file",
			args: []string{"--config", path, "--cluster", "prod"},
			env:  map[string]string{"NOMAD_TOKEN": "env-secret", "NOMAD_SKIP_VERIFY": "false"},
			expect: Cluster{
				Name: "prod", Address: "https://prod:4646", Token: "env-secret",
			},
		},
		{
			name: "flags override env",
			args: []string{"--config", path, "--address", "http://flag:4646", "--retries", "0"},
			env:  map[string]string{"NOMAD_ADDR": "http://env:4646", "NOMAD_REGION": "us"},
			expect: Cluster{
				Name: "staging", Address: "http://flag:4646", Region: "us",
				Namespace: "web", Timeout: 10 * time.Second,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := parseFlags(t, tc.args...)
			got, err := f.Resolve(envMap(tc.env))
			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestResolve_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	f := parseFlags(t, "--namespace", "batch")
	got, err := f.Resolve(envMap(map[string]string{"NOMAD_ADDR": "http://10.0.0.1:4646"}))
	require.NoError(t, err)
	assert.Equal(t, Cluster{Address: "http://10.0.0.1:4646", Namespace: "batch"}, got)

	f = parseFlags(t, "--cluster", "prod")
	_, err = f.Resolve(nil)
	assert.Error(t, err, "a named cluster needs a config file")

	f = parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = f.Resolve(nil)
	assert.Error(t, err, "an explicit config file must exist")
}

func TestResolve_BadSkipVerify(t *testing.T) {
	f := parseFlags(t, "--config", writeConfig(t, sampleConfig))
	_, err := f.Resolve(envMap(map[string]string{"NOMAD_SKIP_VERIFY": "sometimes"}))
	assert.ErrorContains(t, err, "NOMAD_SKIP_VERIFY")
}

func TestClientConfig(t *testing.T) {
	c := Cluster{Address: "http://nomad:4646", Token: "s", Retries: 3}
	cfg, err := c.ClientConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://nomad:4646", cfg.Address)
	assert.Equal(t, 3, cfg.Retries)
	assert.Empty(t, cfg.CACert)

	pemPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(pemPath, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600))
	c.CACert = pemPath
	cfg, err = c.ClientConfig(nil)
	require.NoError(t, err)
	assert.Contains(t, cfg.CACert, "BEGIN CERTIFICATE")

	c.CACert = filepath.Join(t.TempDir(), "missing.pem")
	_, err = c.ClientConfig(nil)
	assert.Error(t, err)
}
