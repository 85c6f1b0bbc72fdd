package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apimcp "github.com/kilianp07/fieldplan/api/mcp"
	"github.com/kilianp07/fieldplan/app"
	"github.com/kilianp07/fieldplan/infra/logger"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Assign every pending task, most urgent first, and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withService(ctx, func(svc *app.Service) error {
			res, err := svc.Planner.Optimize(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Sweep the plan and print the detected conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withService(ctx, func(svc *app.Service) error {
			rep, err := svc.Planner.DetectConflicts(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, rep)
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the planning tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetOutput(os.Stderr)
		return withService(context.Background(), func(svc *app.Service) error {
			return apimcp.Serve(apimcp.NewServer(svc.Planner))
		})
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd, conflictsCmd, mcpCmd)
}
