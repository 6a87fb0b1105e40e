// Command forensicvault manages investigation cases, evidence items and their
// chain of custody from the command line. Results are printed as JSON.
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
	"strings"

	"forensicvault/internal/config"
	"forensicvault/internal/core"
	"forensicvault/internal/logging"
	"forensicvault/pkg/domain"

	"github.com/spf13/cobra"
)

const skipRuntime = "forensicvault/skip-runtime"

var (
	exitFunc  = os.Exit
	lookupEnv = os.LookupEnv
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// app carries the state shared by subcommands for one invocation.
type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer

	cfg    config.Config
	logger *slog.Logger
	rt     *core.Runtime
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forensicvault",
		Short:         "Track forensic cases, evidence and chain of custody",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file (overrides "+config.EnvConfigFile+")")
	root.AddCommand(a.caseCmd(), a.evidenceCmd(), a.attrsCmd(), a.departmentsCmd(), a.rulesCmd())
	return root
}

func (a *app) lookup(key string) (string, bool) {
	if key == config.EnvConfigFile && a.configPath != "" {
		return a.configPath, true
	}
	return lookupEnv(key)
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(a.lookup)
	if err != nil {
		return err
	}
	logger, err := logging.FromConfig(cfg.Log, a.errOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if _, skip := cmd.Annotations[skipRuntime]; skip {
		return nil
	}
	rt, err := core.Open(cmd.Context(), cfg, logger, core.WithAuditRecorder(core.NewSlogAuditRecorder(logger)))
	if err != nil {
		return err
	}
	a.rt = rt
	logger.Debug("runtime opened", "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
	return nil
}

func (a *app) close() error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

func (a *app) service() *core.Service {
	return a.rt.Service
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints v and reports non-blocking rule violations on stderr.
func (a *app) printResult(v any, res domain.Result) error {
	for _, violation := range res.Violations {
		if _, err := fmt.Fprintf(a.errOut, "warning: %s: %s\n", violation.Rule, violation.Message); err != nil {
			return err
		}
	}
	return a.print(v)
}

func (a *app) rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rules evaluated before every commit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			engine := a.service().RulesEngine()
			if engine == nil {
				return a.print([]string{})
			}
			return a.print(engine.Rules())
		},
	}
}

func (a *app) departmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "Count evidence items per holding department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, err := a.service().DepartmentCounts(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(counts)
		},
	}
}

func isNotFound(err error) bool {
	var nf domain.ErrNotFound
	return errors.As(err, &nf)
}

// parseAttrs turns key=value pairs into an attribute bag. Repeated keys and
// keys ending in "[]" collect into lists.
func parseAttrs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("attribute %q: expected key=value", pair)
		}
		existing, seen := out[key]
		switch {
		case strings.HasSuffix(key, "[]") && !seen:
			out[key] = []any{value}
		case !seen:
			out[key] = value
		default:
			if list, isList := existing.([]any); isList {
				out[key] = append(list, value)
			} else {
				out[key] = []any{existing, value}
			}
		}
	}
	return out, nil
}
