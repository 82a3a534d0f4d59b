package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eventtrack/internal/bootstrap"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect tracked job and notification records",
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		store, err := tableFlag(cmd, app)
		if err != nil {
			return err
		}
		id := cmd.Flags().Arg(0)
		rec, found, err := store.Get(ctx, id)
		if err != nil {
			logging.Error(ctx, "get record failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get record")
		}
		if !found {
			return errs.NotFound(fmt.Sprintf("record %q not found", id))
		}
		return writeRecords(cmd, rec)
	}),
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print up to --limit records",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		store, err := tableFlag(cmd, app)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		items, err := store.Scan(ctx, record.ClampScanLimit(limit))
		if err != nil {
			logging.Error(ctx, "list records failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list records")
		}
		return writeRecords(cmd, recordList{Items: items, Count: len(items)})
	}),
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		store, err := tableFlag(cmd, app)
		if err != nil {
			return err
		}
		id := cmd.Flags().Arg(0)
		if err := store.Delete(ctx, id); err != nil {
			logging.Error(ctx, "delete record failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete record")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted record: %s\n", id); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

type recordList struct {
	Items []record.Record `json:"items" yaml:"items" toml:"items"`
	Count int             `json:"count" yaml:"count" toml:"count"`
}

func tableFlag(cmd *cobra.Command, app *bootstrap.App) (ports.RecordStore, error) {
	name, _ := cmd.Flags().GetString("table")
	store, ok := app.Table(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return nil, errs.Validation(fmt.Sprintf("unknown table %q (want jobs or notifications)", name))
	}
	return store, nil
}

func writeRecords(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	if err := encodeAs(cmd.OutOrStdout(), format, v); err != nil {
		return errs.Wrap(err, "write records output")
	}
	return nil
}

func encodeAs(w io.Writer, format string, v any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(tomlRecords(v))
	default:
		return errs.Validation(fmt.Sprintf("unsupported output format %q", format))
	}
}

// tomlRecords drops null payload values, which TOML cannot represent.
func tomlRecords(v any) any {
	switch x := v.(type) {
	case record.Record:
		return withoutNullPayload(x)
	case recordList:
		items := make([]record.Record, len(x.Items))
		for i, rec := range x.Items {
			items[i] = withoutNullPayload(rec)
		}
		return recordList{Items: items, Count: x.Count}
	default:
		return v
	}
}

func withoutNullPayload(rec record.Record) record.Record {
	if rec.Payload != nil {
		rec.Payload, _ = withoutNulls(rec.Payload).(map[string]any)
	}
	return rec
}

func withoutNulls(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			if item != nil {
				out[k] = withoutNulls(item)
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			if item != nil {
				out = append(out, withoutNulls(item))
			}
		}
		return out
	default:
		return v
	}
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsGetCmd, recordsListCmd, recordsDeleteCmd)

	recordsCmd.PersistentFlags().String("table", "jobs", "Record table: jobs or notifications")
	recordsGetCmd.Flags().StringP("output", "o", "json", "Output format: json, yaml or toml (toml omits null payload values)")
	recordsListCmd.Flags().StringP("output", "o", "json", "Output format: json, yaml or toml (toml omits null payload values)")
	recordsListCmd.Flags().Int("limit", record.ScanLimitCeiling, "Maximum records to print")
}
