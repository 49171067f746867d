package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/gitrdm/segledger/internal/config"
	"github.com/gitrdm/segledger/internal/parallel"
	"github.com/gitrdm/segledger/internal/script"
	"github.com/gitrdm/segledger/pkg/segledger"
)

// errScriptsFailed is returned when at least one script failed.
var errScriptsFailed = errors.New("scripts failed")

type appConfig = config.Config

// loadConfig reads the config file, if any, applies the global flags and
// then override, and validates the result.
func loadConfig(g *globalFlags, override func(*appConfig)) (*appConfig, error) {
	cfg := config.DefaultConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.logLevel != "" {
		cfg.Log.Level = strings.ToLower(g.logLevel)
	}
	if g.logFormat != "" {
		cfg.Log.Format = strings.ToLower(g.logFormat)
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	cfg    *appConfig
	out    io.Writer
	logger *slog.Logger
}

func newApp(cfg *appConfig, out, errOut io.Writer) *app {
	return &app{cfg: cfg, out: out, logger: cfg.NewLogger(errOut)}
}

// scriptReport is what one script run produced.
type scriptReport struct {
	output string
	result script.Result
}

// runScripts executes every script on the worker pool, each against its
// own ledger, and prints the reports in argument order.
func (a *app) runScripts(ctx context.Context, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := segledger.NewMetrics(registry)

	pool := parallel.NewWorkerPool(a.cfg.Run.Workers, a.logger)
	defer pool.Shutdown()

	jobs := make([]parallel.Job[scriptReport], len(paths))
	for i, path := range paths {
		jobs[i] = parallel.Job[scriptReport]{
			Name: path,
			Run: func(ctx context.Context) (scriptReport, error) {
				rep, err := a.runScript(ctx, path, metrics)
				if a.cfg.Run.FailFast && (err != nil || !rep.result.Passed()) {
					cancel()
				}
				return rep, err
			},
		}
	}

	a.logger.Info("running scripts", "count", len(paths), "workers", pool.Workers())
	outcomes := parallel.RunAll(ctx, pool, jobs)

	failed := 0
	for _, o := range outcomes {
		fmt.Fprintf(a.out, "== %s\n", o.Name)
		fmt.Fprint(a.out, o.Value.output)
		res := o.Value.result
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(a.out, "ERROR %v\n", o.Err)
		case !res.Passed():
			failed++
			for _, f := range res.Failures {
				fmt.Fprintf(a.out, "FAIL %s\n", f.Error())
			}
			fmt.Fprintf(a.out, "FAIL %d/%d expectations\n", len(res.Failures), res.Expects)
		default:
			fmt.Fprintf(a.out, "ok %d statements, %d expectations\n", res.Statements, res.Expects)
		}
		a.logger.Debug("script finished", "script", o.Name, "elapsed", o.Elapsed, "error", o.Err)
	}

	if a.cfg.Metrics.Output != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Output, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		a.logger.Info("wrote metrics", "path", a.cfg.Metrics.Output)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errScriptsFailed, failed, len(paths))
	}
	return nil
}

func (a *app) runScript(ctx context.Context, path string, metrics *segledger.Metrics) (scriptReport, error) {
	if a.cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Run.Timeout)
		defer cancel()
	}

	s, err := script.ParseFile(path)
	if err != nil {
		return scriptReport{}, err
	}

	logger := a.logger.With("script", path)
	eq := segledger.NewMemoryEquations()
	ledger, err := segledger.NewLedger(eq, &segledger.Config{Logger: logger, Metrics: metrics})
	if err != nil {
		return scriptReport{}, err
	}

	var buf bytes.Buffer
	res, err := script.NewRunner(ledger, eq, &buf, logger).Run(ctx, s)
	return scriptReport{output: buf.String(), result: res}, err
}

// checkScripts parses every script concurrently and reports the first
// syntax error.
func (a *app) checkScripts(ctx context.Context, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	counts := make([]int, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	limit := a.cfg.Run.Workers
	if limit <= 0 {
		limit = -1
	}
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := script.ParseFile(path)
			if err != nil {
				return err
			}
			counts[i] = len(s.Statements)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		fmt.Fprintf(a.out, "%s: ok (%d statements)\n", path, counts[i])
	}
	return nil
}
