// Package main provides the segledger binary entry point.
// segledger runs constraint scripts against an in-memory segment ledger
// and reports whether their expectations hold.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "segledger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Run segment ledger constraint scripts",
		Long: `segledger executes constraint scripts against an in-memory segment
ledger. Each script posts and removes range, stability and or-group
constraints on point pairs and asserts on the resulting variables,
clones and or-group state.

Scripts run concurrently, each against its own ledger.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")

	cmd.AddCommand(runCmd(&g), checkCmd(&g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

func runCmd(g *globalFlags) *cobra.Command {
	var (
		workers    int
		metricsOut string
		failFast   bool
	)

	cmd := &cobra.Command{
		Use:   "run <script>...",
		Short: "Execute scripts and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, func(c *appConfig) {
				if cmd.Flags().Changed("workers") {
					c.Run.Workers = workers
				}
				if cmd.Flags().Changed("metrics-out") {
					c.Metrics.Output = metricsOut
				}
				if cmd.Flags().Changed("fail-fast") {
					c.Run.FailFast = failFast
				}
			})
			if err != nil {
				return err
			}
			a := newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return a.runScripts(cmd.Context(), args)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Scripts run at once (0 = one per CPU)")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop scheduling scripts after the first failure")
	return cmd
}

func checkCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <script>...",
		Short: "Parse scripts without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			a := newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return a.checkScripts(cmd.Context(), args)
		},
	}
}
