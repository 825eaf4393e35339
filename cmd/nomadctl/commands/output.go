package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/go-nomad/nomad"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (want table, json or yaml)", format)
}

// column is one table column over a list of records.
type column struct {
	header string
	value  func(nomad.Record) any
}

func field(header, name string) column {
	return column{header: header, value: func(r nomad.Record) any { return r[name] }}
}

// printList renders records as a table, or as a JSON/YAML document.
func (a *app) printList(cmd *cobra.Command, records []nomad.Record, cols []column) error {
	if a.output != formatTable {
		return a.printValue(cmd, records)
	}
	tw := newTable(cmd)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	tw.AppendHeader(header)
	for _, r := range records {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = cell(c.value(r))
		}
		tw.AppendRow(row)
	}
	tw.Render()
	return nil
}

// printRecord renders one record as field/value pairs.
func (a *app) printRecord(cmd *cobra.Command, rec nomad.Record) error {
	if a.output != formatTable {
		return a.printValue(cmd, rec)
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		tw.AppendRow(table.Row{k, cell(rec[k])})
	}
	tw.Render()
	return nil
}

// printValue writes v as JSON or YAML. In table mode it falls back to
// indented JSON.
func (a *app) printValue(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()
	if a.output == formatYAML {
		data, err := yaml.Marshal(nomad.Normalize(v))
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult reports a boolean outcome. Structured formats get
// {"ok": true}.
func (a *app) printResult(cmd *cobra.Command, ok bool, message string) error {
	if a.output != formatTable {
		return a.printValue(cmd, map[string]any{"ok": ok})
	}
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), message)
	}
	return nil
}

func newTable(cmd *cobra.Command) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	return tw
}

// cell formats nested values as compact JSON, shortened for display.
// Shortening counts runes, not bytes.
func cell(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return text.Snip(string(data), 60, "...")
	}
	return v
}

// records converts a decoded JSON array into records, skipping anything
// that is not an object.
func records(v any) []nomad.Record {
	items, _ := v.([]any)
	out := make([]nomad.Record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, nomad.Record(m))
		}
	}
	return out
}

// badArg reports an unusable command argument as invalid parameters.
func badArg(format string, args ...any) error {
	return &nomad.InvalidParametersError{Reason: fmt.Sprintf(format, args...)}
}
