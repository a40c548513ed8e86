package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"circinspect/internal/config"
	"circinspect/internal/engine"
	clog "circinspect/internal/log"
	"circinspect/internal/metrics"
)

// app holds the global flags and what PersistentPreRunE builds from them.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	logLevel    string
	logFormat   string
	json        bool
	trace       bool
	metricsAddr string

	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	closers []func(context.Context) error
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "circinspect",
		Short: "circinspect - step through quantum circuit programs",
		Long: `circinspect runs a PennyLane-style circuit program, records which source
lines queued which operations, and lets you replay the circuit up to any
point: draw it, step over, into and out of subroutines, stop at
breakpoints, and see what each transform stage does.

Run 'circinspect debug FILE' for the interactive debugger.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	cmd.PersistentFlags().BoolVar(&a.json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVar(&a.trace, "trace", false, "Print trace spans to stderr")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		newDrawCommand(a),
		newStepCommand(a),
		newExpandCommand(a),
		newQASMCommand(a),
		newDebugCommand(a),
		newVersionCommand(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = clog.New(a.logConfig())

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(a.errOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		otel.SetTracerProvider(tp)
		a.closers = append(a.closers, tp.Shutdown)
	}

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}

	a.engine = engine.New(cfg, a.logger)
	return nil
}

// logConfig layers config file, environment and flags, later wins.
func (a *app) logConfig() *clog.Config {
	lc := clog.FromEnv()
	if os.Getenv("CIRCINSPECT_DEBUG") == "" && os.Getenv("CIRCINSPECT_LOG_LEVEL") == "" && os.Getenv("LOG_LEVEL") == "" {
		lc.Level = a.cfg.Log.Level
	}
	if os.Getenv("LOG_FORMAT") == "" {
		lc.Format = clog.Format(a.cfg.Log.Format)
	}
	if a.logLevel != "" {
		lc.Level = a.logLevel
	}
	if a.logFormat != "" {
		lc.Format = clog.Format(strings.ToLower(a.logFormat))
	}
	lc.Output = a.errOut
	return lc
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	a.closers = append(a.closers, srv.Shutdown)
	return nil
}

func (a *app) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func readProgram(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

func readToken(path string) (string, error) {
	if path == "" {
		return "", errors.New("--token-file is required")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
