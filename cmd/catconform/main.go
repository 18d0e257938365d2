package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/catconform/runtime/asmproc"
	"github.com/aledsdavies/catconform/runtime/harness"
)

func main() {
	var (
		filter     string
		verbose    bool
		timeout    time.Duration
		watch      bool
		reportPath string
		subject    string
		oracle     string
		source     string
	)

	runTests := func(cmd *cobra.Command, args []string) error {
		cfg := harness.Config{Verbose: verbose, Timeout: timeout, Out: cmd.OutOrStdout()}
		if oracle == "" {
			path, err := exec.LookPath("cat")
			if err != nil {
				return fmt.Errorf("locate reference cat: %w", err)
			}
			oracle = path
		}
		return runSuite(cmd.Context(), cfg, suiteOptions{
			filter:     filter,
			watch:      watch,
			reportPath: reportPath,
			subject:    subject,
			oracle:     oracle,
			source:     source,
		})
	}

	rootCmd := &cobra.Command{
		Use:   "catconform",
		Short: "Differentially test a cat implementation against the system cat",
		Args:  cobra.NoArgs,
		RunE:  runTests,
	}
	testsCmd := &cobra.Command{
		Use:   "tests",
		Short: "Run the conformance suite (the default command)",
		Args:  cobra.NoArgs,
		RunE:  runTests,
	}
	rootCmd.AddCommand(testsCmd)

	rootCmd.PersistentFlags().StringVarP(&filter, "filter", "f", "", "Run only cases whose name contains this substring")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Trace every spawned command")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-process execution bound (0 disables)")
	rootCmd.PersistentFlags().BoolVar(&watch, "watch", false, "Rerun the suite whenever the subject source changes")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Write a binary run report to this path")
	rootCmd.PersistentFlags().StringVar(&subject, "subject", "wcat/wcat", "Path to the candidate executable")
	rootCmd.PersistentFlags().StringVar(&oracle, "oracle", "", "Path to the reference executable (default: cat from PATH)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "wcat/wcat.asm", "Assembly source the subject is built from")

	var outputDir string
	processCmd := &cobra.Command{
		Use:   "process-asm",
		Short: "Strip trailing comments from .asm sources into an output tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return asmproc.ProcessTree(cwd, filepath.Join(cwd, outputDir), func(rel string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Processed: %s -> %s\n", rel, filepath.Join(outputDir, rel))
			})
		},
	}
	processCmd.Flags().StringVarP(&outputDir, "output", "o", "processed", "Output directory for processed sources")
	rootCmd.AddCommand(processCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type suiteOptions struct {
	filter     string
	watch      bool
	reportPath string
	subject    string
	oracle     string
	source     string
}

func runSuite(ctx context.Context, cfg harness.Config, opts suiteOptions) error {
	run := func() error {
		return runOnce(ctx, cfg, opts)
	}

	if err := run(); err != nil && !opts.watch {
		return err
	}
	if !opts.watch {
		return nil
	}
	return harness.Watch(ctx, cfg, opts.source, run)
}

func runOnce(ctx context.Context, cfg harness.Config, opts suiteOptions) error {
	if err := harness.EnsureBuilt(cfg, opts.subject, opts.source); err != nil {
		return err
	}

	subject, err := filepath.Abs(opts.subject)
	if err != nil {
		return fmt.Errorf("resolve subject path: %w", err)
	}

	fixtures, err := harness.NewFixtures()
	if err != nil {
		return err
	}
	defer fixtures.Close()

	runner := harness.NewRunner(cfg)
	comparator := harness.NewComparator(runner, subject, opts.oracle, fixtures.Dir)

	registry := harness.NewRegistry()
	registry.Add(harness.BuiltinCases()...)
	registry.Add(harness.MatrixCases()...)

	executor := harness.NewExecutor(cfg, harness.Env{
		Config:     cfg,
		Fixtures:   fixtures,
		Runner:     runner,
		Comparator: comparator,
	}, registry)

	started := time.Now()
	summary, execErr := executor.Execute(ctx, opts.filter)

	if opts.reportPath != "" {
		report := harness.RunReport{
			StartedAt: started,
			Subject:   subject,
			Oracle:    opts.oracle,
			Filter:    opts.filter,
			Results:   summary.Results,
			Elapsed:   time.Since(started),
		}
		if err := harness.WriteReport(opts.reportPath, report); err != nil {
			return err
		}
	}

	return execErr
}
