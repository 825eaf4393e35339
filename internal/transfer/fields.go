package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rflorenc/go-nomad/nomad"
)

// serverManaged are job fields owned by the cluster. They are dropped on
// export so the file can be registered elsewhere.
var serverManaged = []string{
	"Status", "StatusDescription", "CreateIndex", "ModifyIndex",
	"JobModifyIndex", "SubmitTime", "Version", "Stable",
}

// stripServerFields returns a copy of job without server-managed fields.
func stripServerFields(job nomad.Record) nomad.Record {
	out := make(nomad.Record, len(job))
	for k, v := range job {
		out[k] = v
	}
	for _, f := range serverManaged {
		delete(out, f)
	}
	return out
}

func writeJob(path string, job nomad.Record, f Format) error {
	var data []byte
	var err error
	switch f {
	case FormatYAML:
		data, err = yaml.Marshal(nomad.Normalize(job))
	case FormatJSON:
		data, err = json.MarshalIndent(job, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJob decodes an exported job. The wrapper form {"Job": {...}} is
// accepted as well as a bare job.
func ReadJob(path string) (nomad.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var job map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &job)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&job)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rec := nomad.Record(job)
	if inner := rec.Map("Job"); inner != nil {
		rec = inner
	}
	if rec.ID() == "" {
		return nil, fmt.Errorf("parsing %s: job has no ID", path)
	}
	return rec, nil
}
