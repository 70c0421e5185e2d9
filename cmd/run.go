// File: cmd/run.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/migrator/internal/agent"
	"github.com/xkilldash9x/migrator/internal/observability"
	"github.com/xkilldash9x/migrator/internal/workspace"
)

type runOptions struct {
	incidentsFile string
	tasksFile     string
	outputFile    string
	runID         string
	autoAccept    bool
	apply         bool
	diagnostics   bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fix the files named by an incidents report.",
		Long: `Run loads static-analysis incidents from a JSON file, fixes each affected
file with the configured model and prints the resulting diffs. Edits are only
written to the workspace when --apply is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("diagnostics") {
				cfg.SetEnableDiagnostics(opts.diagnostics)
			}
			logger := observability.GetLogger()

			in, err := loadWorkflowInput(opts.incidentsFile, opts.tasksFile)
			if err != nil {
				return err
			}
			in.RunID = opts.runID
			if in.RunID == "" {
				in.RunID = deriveRunID(in)
			}
			logger.Debug("Resolved run id.", zap.String("run_id", in.RunID))

			wf, err := buildWorkflow(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer wf.Close()

			resolver := newConsoleResolver(cmd.InOrStdin(), cmd.OutOrStdout(), opts.autoAccept, logger)
			result, runErr := runWorkflow(ctx, wf, in, resolver)
			if result == nil {
				return runErr
			}

			if err := report(cmd, wf.Overlay(), result, opts.apply); err != nil {
				return err
			}
			if opts.outputFile != "" {
				if err := writeResult(opts.outputFile, result); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&opts.incidentsFile, "incidents", "i", "", "JSON file holding an array of incidents (required)")
	cmd.Flags().StringVar(&opts.tasksFile, "tasks", "", "JSON file holding an array of diagnostic tasks")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "write the run result as JSON to this file")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "cache namespace for this run (default is derived from the incidents and tasks)")
	cmd.Flags().BoolVarP(&opts.autoAccept, "auto-accept", "y", false, "accept every proposed change without prompting")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "write staged edits to the workspace")
	cmd.Flags().BoolVar(&opts.diagnostics, "diagnostics", false, "plan and delegate follow-up work after fixing (overrides workflow.enable_diagnostics)")
	_ = cmd.MarkFlagRequired("incidents")
	return cmd
}

func loadWorkflowInput(incidentsFile, tasksFile string) (agent.WorkflowInput, error) {
	var in agent.WorkflowInput
	if err := readJSONFile(incidentsFile, &in.Incidents); err != nil {
		return in, fmt.Errorf("failed to load incidents: %w", err)
	}
	if tasksFile != "" {
		if err := readJSONFile(tasksFile, &in.Tasks); err != nil {
			return in, fmt.Errorf("failed to load tasks: %w", err)
		}
	}
	return in, nil
}

// deriveRunID names a run after its input, so that repeating a run over the
// same incidents and tasks replays cached responses.
func deriveRunID(in agent.WorkflowInput) string {
	data, err := json.Marshal(agent.WorkflowInput{Incidents: in.Incidents, Tasks: in.Tasks})
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, data).String()
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// runWorkflow runs wf while the resolver answers its interactions.
func runWorkflow(ctx context.Context, wf *agent.Workflow, in agent.WorkflowInput, resolver *consoleResolver) (*agent.Result, error) {
	events, unsubscribe := wf.Subscribe()
	g, gctx := errgroup.WithContext(ctx)

	var result *agent.Result
	g.Go(func() error {
		// Closing the subscription ends the consumer below.
		defer unsubscribe()
		var err error
		result, err = wf.Run(gctx, in)
		return err
	})
	g.Go(func() error {
		for msg := range events {
			resolver.Handle(msg, wf)
		}
		return nil
	})

	err := g.Wait()
	return result, err
}

// report prints staged edits as diffs, or writes them when apply is set.
func report(cmd *cobra.Command, overlay *workspace.Overlay, result *agent.Result, apply bool) error {
	out := cmd.OutOrStdout()
	logger := observability.GetLogger()
	if len(result.Staged) == 0 {
		fmt.Fprintln(out, "No files were changed.")
		return nil
	}

	var errs []error
	for _, path := range result.Staged {
		if apply {
			if err := overlay.Commit(path); err != nil {
				logger.Error("Failed to write file.", zap.String("path", path), zap.Error(err))
				errs = append(errs, fmt.Errorf("failed to write %s: %w", path, err))
				continue
			}
			fmt.Fprintf(out, "wrote %s\n", path)
			continue
		}
		after, _, err := overlay.Read(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		before, _ := overlay.Storage().Read(path)
		fmt.Fprint(out, workspace.Diff(path, before, after))
	}
	if !apply {
		fmt.Fprintf(out, "%d file(s) staged. Re-run with --apply to write them.\n", len(result.Staged))
	}
	return errors.Join(errs...)
}

func writeResult(path string, result *agent.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
