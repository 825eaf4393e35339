// Package transfer copies job specifications between Nomad clusters through
// a directory of exported files.
//
// Export fetches jobs from a source cluster and writes one file per job.
// Preview checks each exported job against a destination cluster, and
// Import registers them there.
package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Format is the on-disk encoding of exported jobs.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Actions reported for each job.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionSkip     = "skip_excluded"
	ActionExported = "exported"
	ActionFailed   = "failed"
)

// Options control which jobs are transferred and how.
type Options struct {
	Prefix    string
	Namespace string
	Exclude   []string // job IDs to leave out
	Format    Format
	DryRun    bool
}

func (o Options) excluded(id string) bool {
	for _, e := range o.Exclude {
		if e == id {
			return true
		}
	}
	return false
}

func (o Options) format() Format {
	if o.Format == "" {
		return FormatJSON
	}
	return o.Format
}

// Item describes one job considered for transfer.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	Action    string `json:"action" yaml:"action"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of an Export, Preview or Import run.
type Report struct {
	Items    []Item   `json:"items" yaml:"items"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Count returns how many items have the given action.
func (r *Report) Count(action string) int {
	n := 0
	for _, it := range r.Items {
		if it.Action == action {
			n++
		}
	}
	return n
}

func (r *Report) add(it Item) {
	r.Items = append(r.Items, it)
}

// fileName maps a namespaced job to a file name. Namespace names cannot
// contain underscores, so "<namespace>__<id>" never collides across
// namespaces. Slashes in child job IDs become "__" as well.
func fileName(namespace, id string, f Format) string {
	name := strings.ReplaceAll(id, "/", "__")
	if namespace != "" {
		name = namespace + "__" + name
	}
	return name + "." + string(f)
}

// jobFiles lists exported job files in dir, sorted.
func jobFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
