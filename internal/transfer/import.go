package transfer

import (
	"context"
	"fmt"

	"github.com/rflorenc/go-nomad/nomad"
)

// Preview classifies every exported job in dir as a create or an update on
// dst. Nothing is written to dst.
func Preview(ctx context.Context, dst *nomad.Client, dir string, opts Options, logger func(string)) (*Report, error) {
	files, err := jobFiles(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	logger(fmt.Sprintf("Checking %d jobs on %s...", len(files), dst.Address()))
	for _, path := range files {
		job, err := ReadJob(path)
		if err != nil {
			return report, err
		}
		item := Item{ID: job.ID(), Namespace: job.String("Namespace"), File: path}
		if opts.excluded(item.ID) {
			item.Action = ActionSkip
			report.add(item)
			continue
		}

		exists, err := dst.Job().ExistsIn(ctx, item.ID, item.Namespace)
		if err != nil {
			return report, fmt.Errorf("checking job %s: %w", item.ID, err)
		}
		item.Action = ActionCreate
		if exists {
			item.Action = ActionUpdate
			logger(fmt.Sprintf("  %s: exists, will be updated", item.ID))
		}
		report.add(item)
	}

	if n := report.Count(ActionUpdate); n > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d jobs already exist on the destination and will get a new version", n))
	}
	logger(fmt.Sprintf("Preview complete: %d to create, %d to update, %d excluded",
		report.Count(ActionCreate), report.Count(ActionUpdate), report.Count(ActionSkip)))
	return report, nil
}

// Import registers every exported job in dir with dst. A failed job does
// not stop the run; the returned error summarises failures.
func Import(ctx context.Context, dst *nomad.Client, dir string, opts Options, logger func(string)) (*Report, error) {
	report, err := Preview(ctx, dst, dir, opts, logger)
	if err != nil {
		return report, err
	}
	if opts.DryRun {
		logger("Dry run: nothing registered")
		return report, nil
	}

	logger("")
	logger("=== Registering jobs on " + dst.Address() + " ===")
	failed := 0
	for i := range report.Items {
		item := &report.Items[i]
		if item.Action == ActionSkip {
			continue
		}
		job, err := ReadJob(item.File)
		if err == nil {
			_, err = dst.Job().Register(ctx, item.ID, map[string]any{"Job": job})
		}
		if err != nil {
			failed++
			item.Action = ActionFailed
			item.Error = err.Error()
			logger(fmt.Sprintf("  WARNING: %s: %v", item.ID, err))
			continue
		}
		logger(fmt.Sprintf("  %s: registered", item.ID))
	}

	if failed > 0 {
		return report, fmt.Errorf("%d of %d jobs failed to register", failed, len(report.Items)-report.Count(ActionSkip))
	}
	return report, nil
}
