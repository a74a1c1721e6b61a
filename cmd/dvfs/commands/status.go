package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/internal/cli/health"
	"github.com/marmos91/dittovfs/internal/cli/output"
	"github.com/marmos91/dittovfs/internal/cli/timeutil"
	"github.com/marmos91/dittovfs/pkg/config"
)

var (
	statusAddr   string
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	Long: `Query the health endpoint of a running DittoVFS server.

Without --addr the server port is read from the configuration.

Examples:
  # Check the locally configured server
  dvfs status

  # Check a remote server as JSON
  dvfs status --addr http://vfs.internal:8080 -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Server base URL (default: http://localhost:<server.port>)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	printer, err := output.PrinterFor(cmd.OutOrStdout(), statusOutput)
	if err != nil {
		return err
	}

	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return err
		}
		addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := health.Check(ctx, nil, addr)
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(resp)
	}

	status := resp.Status
	if resp.Error != "" {
		status += " (" + resp.Error + ")"
	}
	if err := output.SimpleTable(printer.Writer(), [][2]string{
		{"Server", addr},
		{"Status", status},
		{"Service", resp.Data.Service},
		{"Started", timeutil.FormatTime(resp.Data.StartedAt)},
		{"Uptime", timeutil.FormatUptime(resp.Data.Uptime)},
	}); err != nil {
		return err
	}
	if !resp.Healthy() {
		return fmt.Errorf("server at %s is %s", addr, resp.Status)
	}
	return nil
}
