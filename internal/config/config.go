package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/go-nomad/nomad"
)

// Cluster represents one Nomad cluster, either from the config file or
// resolved from every source.
type Cluster struct {
	Name      string        `yaml:"name"`
	Address   string        `yaml:"address"`
	Token     string        `yaml:"token"`
	Region    string        `yaml:"region"`
	Namespace string        `yaml:"namespace"`
	Insecure  bool          `yaml:"insecure"`
	CACert    string        `yaml:"ca_cert"` // path to a PEM bundle
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
}

// File is the on-disk configuration.
type File struct {
	Current  string    `yaml:"current"`
	Clusters []Cluster `yaml:"clusters"`
}

// Flags holds the connection flags shared by every command.
type Flags struct {
	ConfigFile string
	Cluster    string
	Overrides  Cluster

	fs *pflag.FlagSet
}

// BindFlags registers the connection flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&f.Cluster, "cluster", "", "Named cluster from the config file")
	fs.StringVar(&f.Overrides.Address, "address", "", "Nomad HTTP API address")
	fs.StringVar(&f.Overrides.Token, "token", "", "ACL secret ID")
	fs.StringVar(&f.Overrides.Region, "region", "", "Default region")
	fs.StringVar(&f.Overrides.Namespace, "namespace", "", "Default namespace")
	fs.BoolVar(&f.Overrides.Insecure, "insecure", false, "Skip TLS certificate verification")
	fs.StringVar(&f.Overrides.CACert, "ca-cert", "", "Path to a PEM encoded CA bundle")
	fs.DurationVar(&f.Overrides.Timeout, "timeout", 0, "Per-request timeout")
	fs.IntVar(&f.Overrides.Retries, "retries", 0, "Retries after connection failures")
	return f
}

// DefaultPath returns the config file read when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nomadctl", "config.yaml")
}

// Resolve builds the effective cluster settings. Later sources win: the
// selected config file entry, then NOMAD_* environment variables, then
// flags that were explicitly set.
func (f *Flags) Resolve(getenv func(string) string) (Cluster, error) {
	var c Cluster

	path := f.ConfigFile
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		file, err := Load(path)
		switch {
		case err == nil:
			selected, err := file.Select(f.Cluster)
			if err != nil {
				return Cluster{}, err
			}
			c = selected
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Cluster{}, err
		}
	}
	if c.Name == "" && f.Cluster != "" {
		return Cluster{}, fmt.Errorf("cluster %q: no config file found", f.Cluster)
	}

	if err := c.applyEnv(getenv); err != nil {
		return Cluster{}, err
	}
	f.applyFlags(&c)
	return c, nil
}

// Load reads a YAML config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	seen := make(map[string]bool)
	for _, c := range file.Clusters {
		if c.Name == "" {
			return nil, fmt.Errorf("parsing %s: cluster without a name", path)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("parsing %s: duplicate cluster %q", path, c.Name)
		}
		seen[c.Name] = true
	}
	return &file, nil
}

// Select returns the named cluster, falling back to Current and then to
// the only entry when there is exactly one.
func (f *File) Select(name string) (Cluster, error) {
	if name == "" {
		name = f.Current
	}
	if name == "" {
		if len(f.Clusters) == 1 {
			return f.Clusters[0], nil
		}
		return Cluster{}, nil
	}
	for _, c := range f.Clusters {
		if c.Name == name {
			return c, nil
		}
	}
	return Cluster{}, fmt.Errorf("cluster %q not found in config", name)
}

func (c *Cluster) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := getenv("NOMAD_ADDR"); v != "" {
		c.Address = v
	}
	if v := getenv("NOMAD_TOKEN"); v != "" {
		c.Token = v
	}
	if v := getenv("NOMAD_REGION"); v != "" {
		c.Region = v
	}
	if v := getenv("NOMAD_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := getenv("NOMAD_CACERT"); v != "" {
		c.CACert = v
	}
	if v := getenv("NOMAD_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NOMAD_SKIP_VERIFY: %w", err)
		}
		c.Insecure = b
	}
	return nil
}

// applyFlags only copies flags the user actually passed.
func (f *Flags) applyFlags(c *Cluster) {
	changed := func(name string) bool {
		return f.fs != nil && f.fs.Changed(name)
	}
	o := f.Overrides
	if changed("address") {
		c.Address = o.Address
	}
	if changed("token") {
		c.Token = o.Token
	}
	if changed("region") {
		c.Region = o.Region
	}
	if changed("namespace") {
		c.Namespace = o.Namespace
	}
	if changed("insecure") {
		c.Insecure = o.Insecure
	}
	if changed("ca-cert") {
		c.CACert = o.CACert
	}
	if changed("timeout") {
		c.Timeout = o.Timeout
	}
	if changed("retries") {
		c.Retries = o.Retries
	}
}

// ClientConfig converts the settings into a client config, reading the CA
// bundle from disk.
func (c Cluster) ClientConfig(logger *zerolog.Logger) (nomad.Config, error) {
	cfg := nomad.Config{
		Address:   c.Address,
		Token:     c.Token,
		Region:    c.Region,
		Namespace: c.Namespace,
		Insecure:  c.Insecure,
		Timeout:   c.Timeout,
		Retries:   c.Retries,
		Logger:    logger,
	}
	if c.CACert != "" {
		pem, err := os.ReadFile(c.CACert)
		if err != nil {
			return nomad.Config{}, fmt.Errorf("reading CA bundle: %w", err)
		}
		cfg.CACert = string(pem)
	}
	return cfg, nil
}
