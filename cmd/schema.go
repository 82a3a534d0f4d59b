package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/usecase/ingest"
)

var schemaTargets = map[string]func() any{
	"envelope": func() any { return &ingest.Envelope{} },
	"storage":  func() any { return &ingest.StorageRecord{} },
	"pubsub":   func() any { return &ingest.PubSubRecord{} },
	"direct":   func() any { return &ingest.DirectRequest{} },
	"record":   func() any { return &record.Record{} },
}

var schemaCmd = &cobra.Command{
	Use:   "schema <envelope|storage|pubsub|direct|record>",
	Short: "Print the JSON Schema of an accepted event shape or a stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(strings.TrimSpace(args[0]))
		target, ok := schemaTargets[name]
		if !ok {
			names := make([]string, 0, len(schemaTargets))
			for n := range schemaTargets {
				names = append(names, n)
			}
			sort.Strings(names)
			return errs.Validation(fmt.Sprintf("unknown schema %q (want one of %s)", name, strings.Join(names, ", ")))
		}

		reflector := &jsonschema.Reflector{DoNotReference: true}
		schema := reflector.Reflect(target())

		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return errs.Wrap(err, "encode schema")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
			return errs.Wrap(err, "write schema output")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
