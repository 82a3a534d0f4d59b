/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"eventtrack/internal/bootstrap"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the jobs and notifications record tables",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(
			ctx,
			"init-db finished",
			slog.String("database_driver", app.Config.Database.Driver),
			slog.String("jobs_table", app.Config.Tables.Jobs),
			slog.String("notifications_table", app.Config.Tables.Notifications),
		)
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"record tables initialized: %s, %s (%s)\n",
			app.Config.Tables.Jobs,
			app.Config.Tables.Notifications,
			app.Config.Database.Driver,
		); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
