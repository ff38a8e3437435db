package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/flows"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/runtime"
	"github.com/tjfontaine/polyglot-flow/internal/server"
	"github.com/tjfontaine/polyglot-flow/internal/telemetry"
	"github.com/tjfontaine/polyglot-flow/internal/tui"
)

// Exit codes
const (
	exitFailed = 1
	exitUsage  = 2
	exitAbort  = 130
)

// app carries the process streams and the seams tests replace.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	isTerminal func() bool
	ask        func(question, placeholder string) (string, error)
	newService func(configPath string, logger *slog.Logger) (*runtime.Service, error)
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		isTerminal: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		ask: func(question, placeholder string) (string, error) {
			return tui.Ask(question, placeholder)
		},
		newService: func(configPath string, logger *slog.Logger) (*runtime.Service, error) {
			return runtime.New(runtime.WithLogger(logger), runtime.WithFileConfig(configPath))
		},
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "flow",
		Usage:     "run multi-step LLM content pipelines",
		Reader:    a.stdin,
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		// main reports errors and picks the exit code
		ExitErrHandler: func(context.Context, *cli.Command, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file",
				Value:   config.DefaultPath,
				Sources: cli.EnvVars("FLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			a.runCommand(),
			a.serveCommand(),
			a.describeCommand(),
			a.runsCommand(),
		},
	}
}

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a flow and write its artifact",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "flow",
				Usage: "flow to run",
				Value: flows.DefaultFlow,
			},
			&cli.StringFlag{
				Name:    "topic",
				Aliases: []string{"t", "input"},
				Usage:   "value for the flow's input parameter; asked for interactively when omitted",
			},
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "additional parameter as key=value",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output directory (defaults to output.dir)",
			},
		},
		Action: a.runFlow,
	}
}

func (a *app) runFlow(ctx context.Context, cmd *cli.Command) error {
	svc, cleanup, err := a.start(ctx, cmd, a.stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	id := cmd.String("flow")
	entry, err := svc.Catalog().Get(id)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	params := domain.Payload{}
	for _, kv := range cmd.StringSlice("set") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return cli.Exit(fmt.Sprintf("invalid --set %q: want key=value", kv), exitUsage)
		}
		params[key] = value
	}

	if entry.Input != "" && params[entry.Input] == nil {
		input := strings.TrimSpace(cmd.String("topic"))
		if input == "" {
			if !a.isTerminal() {
				return cli.Exit(fmt.Sprintf("--topic is required for %s when stdin is not a terminal", id), exitUsage)
			}
			input, err = a.ask(entry.Prompt, "")
			if errors.Is(err, tui.ErrAborted) {
				return cli.Exit("aborted", exitAbort)
			}
			if err != nil {
				return err
			}
		}
		params[entry.Input] = input
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := entry.Pipeline.Run(ctx, params)
	if run == nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	printRun(a.stdout, run)

	if err != nil {
		pe := domain.AsPipelineError(err, domain.KindGeneration)
		return cli.Exit(fmt.Sprintf("flow %s failed at step %s: %s", id, pe.StepID, pe.Message), exitFailed)
	}

	dir := cmd.String("out")
	if dir == "" {
		dir = svc.Config().Output.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, entry.Artifact)
	if err := os.WriteFile(path, []byte(entry.Render(run)), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return nil
}

func printRun(w io.Writer, run *pipeline.Run) {
	fmt.Fprintf(w, "run %s %s (%s)\n", run.ID, run.Status, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rep := range run.Steps {
		note := ""
		if rep.Error != nil {
			note = fmt.Sprintf("%s: %s", rep.Error.Kind, rep.Error.Message)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", rep.StepID, rep.Status, note)
	}
	tw.Flush()
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the flow catalog over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "listen port (defaults to server.port)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, cleanup, err := a.start(ctx, cmd, a.stdout)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := svc.Config()
			port := cmd.Int("port")
			if port == 0 {
				port = cfg.Server.Port
			}

			srv := server.New(svc,
				server.WithLogger(a.logger(cmd, a.stdout)),
				server.WithPort(port),
				server.WithRequestTimeout(cfg.Server.RequestTimeout),
			)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}

func (a *app) describeCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "print flow contracts as YAML",
		ArgsUsage: "[flow]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, cleanup, err := a.start(ctx, cmd, a.stderr)
			if err != nil {
				return err
			}
			defer cleanup()

			var out any
			if id := cmd.Args().First(); id != "" {
				entry, err := svc.Catalog().Get(id)
				if err != nil {
					return cli.Exit(err.Error(), exitUsage)
				}
				out = server.Describe(entry)
			} else {
				var all []server.FlowDescription
				for _, entry := range svc.Catalog().List() {
					all = append(all, server.Describe(entry))
				}
				out = all
			}

			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
}

func (a *app) runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "list recent runs from the run store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "flow", Usage: "only runs of this flow"},
			&cli.IntFlag{Name: "limit", Usage: "maximum runs to list", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "print JSON records"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, cleanup, err := a.start(ctx, cmd, a.stderr)
			if err != nil {
				return err
			}
			defer cleanup()

			store := svc.Store()
			if store == nil {
				return cli.Exit("run storage is disabled (storage.type: none)", exitFailed)
			}
			runs, err := store.ListRuns(ctx, cmd.String("flow"), cmd.Int("limit"))
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFLOW\tSTATUS\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.PipelineID, r.Status,
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration().Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}
}

// start builds and starts the service for a command and installs tracing.
// The returned cleanup flushes spans and closes the service.
func (a *app) start(ctx context.Context, cmd *cli.Command, logOut io.Writer) (*runtime.Service, func(), error) {
	logger := a.logger(cmd, logOut)

	svc, err := a.newService(cmd.String("config"), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := svc.Start(ctx); err != nil {
		svc.Close()
		return nil, nil, err
	}

	shutdown, err := telemetry.InitTracer(svc.Config().Telemetry, logger, telemetry.WithWriter(a.stderr))
	if err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("initialize tracer: %w", err)
	}

	return svc, func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
		if err := svc.Close(); err != nil {
			logger.Error("failed to close service", slog.String("error", err.Error()))
		}
	}, nil
}

func (a *app) logger(cmd *cli.Command, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
