package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"appbuilder/pkg/coder"
	"appbuilder/pkg/config"
	runmetrics "appbuilder/pkg/metrics"
	"appbuilder/pkg/persistence"
	"appbuilder/pkg/pipeline"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/workspace"
)

type runOptions struct {
	provider   string
	model      string
	root       string
	export     string
	metricsOut string
	dbPath     string
	ceiling    int
	keep       bool
	noHistory  bool
}

func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [request...]",
		Short: "Generate a project from a request",
		Long: `Plan, architect and code a project from a free-text request.

The project root is cleared before the run unless --keep is given. When no
request is passed as arguments it is read from standard input.

Examples:
  appbuilder run "Build a colourful todo app in html, css and js"
  appbuilder run --model claude-sonnet-4-5 --root ./todo --export plan.yaml "todo app"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRun(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.provider, "provider", "", "model provider ("+strings.Join(config.Providers(), ", ")+")")
	f.StringVar(&opts.model, "model", "", "model name")
	f.StringVar(&opts.root, "root", "", "project root directory")
	f.StringVar(&opts.export, "export", "", "write the plan and task plan to this YAML file")
	f.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus text metrics to this file after the run")
	f.StringVar(&opts.dbPath, "db", "", "run history database")
	f.IntVar(&opts.ceiling, "recursion-limit", 0, "maximum stage invocations for the run")
	f.BoolVar(&opts.keep, "keep", false, "keep existing project root content")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the run")
	return cmd
}

// applyFlags overlays explicitly set flags onto cfg.
func (o *runOptions) applyFlags(cfg *config.Config) {
	if o.model != "" {
		cfg.Model = o.model
		if o.provider == "" {
			if provider, err := config.ProviderForModel(o.model); err == nil {
				cfg.Provider = provider
			}
		}
	}
	if o.provider != "" {
		cfg.Provider = o.provider
	}
	if o.root != "" {
		cfg.ProjectRoot = o.root
	}
	if o.metricsOut != "" {
		cfg.MetricsOut = o.metricsOut
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.noHistory {
		cfg.DatabasePath = ""
	}
	if o.ceiling > 0 {
		cfg.RecursionLimit = o.ceiling
	}
}

func (a *App) runRun(cmd *cobra.Command, opts *runOptions, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	opts.applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		if request, err = readLine(cmd.InOrStdin(), out, "Enter your project prompt: "); err != nil {
			return err
		}
	}
	if request == "" {
		return errors.New("a request is required")
	}

	recorder := runmetrics.NewPrometheusRecorder()
	if cfg.MetricsOut != "" {
		defer func() {
			if werr := recorder.WriteTextfile(cfg.MetricsOut); werr != nil {
				a.logger.Warn("⚠️  Failed to write metrics to %s: %v", cfg.MetricsOut, werr)
			}
		}()
	}

	client, err := a.NewClient(cfg, a.loadSecrets(), recorder)
	if err != nil {
		return err
	}

	var store *workspace.Store
	if opts.keep {
		store, err = workspace.New(cfg.ProjectRoot)
	} else {
		store, err = workspace.Reset(cfg.ProjectRoot)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare project root: %w", err)
	}

	history, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer func() { _ = history.Close() }()

	deps := pipeline.Components(client, store, &cfg, recorder)
	deps.History = history
	p, err := pipeline.New(deps)
	if err != nil {
		return err //nolint:wrapcheck // construction errors are self-describing
	}

	final, runErr := p.Run(cmd.Context(), request, cfg.RecursionLimit)
	printSummary(out, final, store.Root())

	if opts.export != "" && final.Plan != nil {
		if err := plan.WriteYAML(opts.export, final.Plan, final.TaskPlan); err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprintf(out, "Plan exported to %s\n", opts.export)
	}
	return runErr
}

// printSummary shows the plan and the outcome of every step.
func printSummary(w io.Writer, final *pipeline.FinalState, root string) {
	fmt.Fprintf(w, "\nRun %s: %s after %d iterations\n", final.RunID, final.Status, final.Iterations)
	if final.Plan != nil {
		fmt.Fprintf(w, "Project: %s\n", final.Plan.Name)
		if final.Plan.Description != "" {
			fmt.Fprintf(w, "  %s\n", final.Plan.Description)
		}
		if final.Plan.Techstack != "" {
			fmt.Fprintf(w, "  Tech stack: %s\n", final.Plan.Techstack)
		}
	}
	if final.TaskPlan != nil {
		fmt.Fprintf(w, "Implementation steps: %d\n", final.TaskPlan.Len())
	}
	if len(final.Results) == 0 {
		return
	}

	fmt.Fprintf(w, "Files in %s:\n", root)
	for _, res := range final.Results {
		switch res.Kind {
		case coder.StepSuccess:
			fmt.Fprintf(w, "  ✅ %s\n", res.Path)
		case coder.StepDegraded:
			fmt.Fprintf(w, "  ⚠️  %s (placeholder after %d attempts)\n", res.Path, res.Attempts)
		case coder.StepHardFailure:
			fmt.Fprintf(w, "  ❌ %s (not written)\n", res.Path)
		}
	}
}
