package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rflorenc/go-nomad/nomad"
)

// Export writes every job on src matching opts into dir, one file per job.
// Jobs that disappear between listing and fetching are skipped with a
// warning.
func Export(ctx context.Context, src *nomad.Client, dir string, opts Options, logger func(string)) (*Report, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	logger("Listing jobs on " + src.Address() + "...")
	stubs, err := src.Jobs().List(ctx, nomad.JobListOptions{Prefix: opts.Prefix, Namespace: opts.Namespace})
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	report := &Report{}
	for _, stub := range stubs {
		id := stub.ID()
		ns := stub.String("Namespace")
		if opts.excluded(id) {
			logger(fmt.Sprintf("  %s: excluded", id))
			report.add(Item{ID: id, Namespace: ns, Action: ActionSkip})
			continue
		}
		if stub.String("ParentID") != "" {
			// Dispatched and periodic children are recreated by their parent.
			continue
		}

		job, err := src.Job().Get(ctx, id, ns)
		if nomad.IsNotFound(err) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("job %s was removed during export", id))
			continue
		}
		if err != nil {
			return report, fmt.Errorf("fetching job %s: %w", id, err)
		}

		path := filepath.Join(dir, fileName(ns, id, opts.format()))
		if err := writeJob(path, stripServerFields(job), opts.format()); err != nil {
			return report, err
		}
		logger(fmt.Sprintf("  %s/%s -> %s", ns, id, path))
		report.add(Item{ID: id, Namespace: ns, File: path, Action: ActionExported})
	}

	logger(fmt.Sprintf("Exported %d jobs (%d excluded)", report.Count(ActionExported), report.Count(ActionSkip)))
	return report, nil
}
