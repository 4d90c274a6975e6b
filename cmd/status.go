package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/volunteer/pkg/export"
)

var (
	statusTicks  int
	statusExport string
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Simulate a number of ticks then print or export the live assignments",
	RunE:  status,
}

func init() {
	statusCmd.Flags().IntVarP(&statusTicks, "ticks", "n", 60, "number of ticks to simulate first")
	statusCmd.Flags().StringVar(&statusExport, "export", "", "write assignments to this file instead of stdout")
	statusCmd.Flags().StringVar(&statusFormat, "format", "json", "export format: json, csv or zstd")
	rootCmd.AddCommand(statusCmd)
}

func status(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	if _, err := svc.Simulate(context.Background(), statusTicks); err != nil {
		return err
	}
	rows := export.Rows(svc.World, svc.Engine.Store().List())

	var out io.Writer = cmd.OutOrStdout()
	if statusExport != "" {
		f, err := os.Create(statusExport)
		if err != nil {
			return fmt.Errorf("create export: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := export.Write(out, statusFormat, rows); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if statusExport != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d assignments to %s\n", len(rows), statusExport)
	}
	return nil
}
