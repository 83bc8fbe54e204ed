package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonathan/ats-analyzer/internal/analysis"
	"github.com/jonathan/ats-analyzer/internal/ingestion"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/observability"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/spf13/cobra"
)

// drainTimeout bounds how long the final events are awaited.
const drainTimeout = 2 * time.Second

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a CV against a job description",
	Long: `Runs one analysis and prints each phase as it is revealed, followed by the
full result. The job description comes from --jd-file, --jd-text or stdin ("-").`,
	RunE: runAnalyze,
}

var (
	analyzeCVID    string
	analyzeJDFile  string
	analyzeJDText  string
	analyzeForce   bool
	analyzeVerbose bool
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCVID, "cv-id", "", "Identifier of the stored CV")
	analyzeCmd.Flags().StringVarP(&analyzeJDFile, "jd-file", "f", "", "Path to a job description file, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeJDText, "jd-text", "", "Job description text")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "Ignore cached results")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Log at debug level")

	_ = analyzeCmd.MarkFlagRequired("cv-id")
	analyzeCmd.MarkFlagsMutuallyExclusive("jd-file", "jd-text")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	jdText, err := readJD(analyzeJDFile, analyzeJDText, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if analyzeVerbose {
		cfg.Logging.Level = "debug"
	}
	log, err := logger.New(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctrl, err := eng.NewController()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	state, err := runOnce(ctx, ctrl, analyzeCVID, jdText, analyzeForce, printer)
	if err != nil {
		return err
	}
	printer.PrintResult(state, ctrl.Result(), ctrl.ErrorMessage())
	if state == types.StateError {
		return fmt.Errorf("analysis failed")
	}
	return nil
}

// runOnce starts an analysis and prints its events until it settles.
func runOnce(ctx context.Context, ctrl *analysis.Controller, cvID, jdText string, force bool, printer *observability.Printer) (types.State, error) {
	sub := ctrl.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.Events() {
			printer.PrintEvent(ev)
			if ev.Terminal() {
				return
			}
		}
	}()

	var opts []analysis.RunOption
	if force {
		opts = append(opts, analysis.WithForceRerun())
	}
	var state types.State
	if err := ctrl.PerformAnalysis(ctx, cvID, jdText, opts...); err != nil {
		// Rejected input leaves the controller idle; anything else has
		// already been reported as a terminal event.
		state = ctrl.State()
		if !state.IsTerminal() {
			return state, err
		}
	} else if state, err = ctrl.Wait(ctx); err != nil {
		// Interrupted: cancel so the terminal event is printed.
		ctrl.CancelAnalysis()
		state = ctrl.State()
	}
	// The terminal event is published with the state change; give the
	// printer a moment to reach it before dropping the subscription.
	select {
	case <-done:
	case <-time.After(drainTimeout):
	}
	return state, nil
}

// readJD returns the job description from a file, stdin or the flag.
func readJD(file, text string, stdin io.Reader) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return ingestion.NormalizeJDText(string(data)), nil
	case file != "":
		return ingestion.ReadJDFile(file)
	case strings.TrimSpace(text) != "":
		return text, nil
	default:
		return "", fmt.Errorf("one of --jd-file or --jd-text is required")
	}
}
