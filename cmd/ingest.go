package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"eventtrack/internal/bootstrap"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
	"eventtrack/internal/usecase/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Handle one event envelope read from --file or stdin",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raw, err := readEnvelope(cmd)
		if err != nil {
			return err
		}

		inv := ingest.NewInvocation("cli")
		if requestID, _ := cmd.Flags().GetString("request-id"); strings.TrimSpace(requestID) != "" {
			inv.ID = strings.TrimSpace(requestID)
		}
		ctx = logging.WithInvocation(ctx, inv.ID, inv.Origin)

		result, handleErr := app.Ingest.Handle(ctx, inv, raw)
		if handleErr != nil && result.Status == "" {
			result = ingest.Result{Status: ingest.StatusError, Message: errs.Public(handleErr, "Internal server error")}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return errs.Wrap(err, "write ingest output")
		}
		if handleErr != nil {
			return errs.Wrapf(handleErr, "handle event (%s)", errs.KindOf(handleErr))
		}
		return nil
	}),
}

func readEnvelope(cmd *cobra.Command) ([]byte, error) {
	file, _ := cmd.Flags().GetString("file")
	if strings.TrimSpace(file) == "" || file == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errs.Wrap(err, "read event from stdin")
		}
		return raw, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, errs.Wrapf(err, "read event file %q", file)
	}
	return raw, nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("file", "", "Event JSON file (default stdin)")
	ingestCmd.Flags().String("request-id", "", "Invocation id used for direct requests")
}
