package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"compliance/internal/backends/git"
	"compliance/internal/config"
	"compliance/internal/content"
	"compliance/internal/engine"
	"compliance/internal/rules"
	"compliance/internal/slogutil"
	"compliance/internal/syntax"
	"compliance/internal/trace"
	"compliance/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "compliance <file> [<file> ...]",
	Short: "Pre-commit compliance gate",
	Long: `compliance checks the given files against the rule-sets mapped to them in
.compliance/config.yaml: PRD metadata, test-case catalogs, test layout,
requirement traceability of source files, task documents, and the
pre-commit test run. Findings are written to standard error.

The exit status is 1 when strict mode is enabled and any file failed,
when the configuration cannot be loaded, or when the run is interrupted.`,
	Version:       version.Version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot determine working directory: %w", err)
		}
		code, err := run(ctx, wd, args, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(version.Full() + "\n")
}

// run loads configuration and rule-sets for the repository containing wd,
// checks files and prints the report to w.
func run(ctx context.Context, wd string, files []string, w io.Writer) (int, error) {
	root, ok := trace.FindRepoRoot(wd)
	if !ok {
		root = wd
	}

	cfgPath, err := config.Locate(root)
	if err != nil {
		return 1, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return 1, err
	}

	logger := slogutil.NewLogger(w, slogutil.LevelFromString(cfg.Logging.Level))
	logger.Debug("Configuration loaded", "path", cfgPath, "root", root)

	rulesDir := cfg.Rules.RulesDir
	if !filepath.IsAbs(rulesDir) {
		rulesDir = filepath.Join(root, filepath.FromSlash(rulesDir))
	}
	registry, errs := rules.LoadDir(rulesDir, logger)
	logger.Debug("Rule-sets loaded", "dir", rulesDir, "count", registry.Len(), "skipped", len(errs))

	vcs := git.NewAdapter(0, logger)
	if !vcs.Available() {
		logger.Warn("git not found; staged content is unavailable")
	}

	acc := content.NewAccessor(vcs, content.Options{
		WorkDir:       root,
		ContainerRoot: cfg.Engine.ContainerRoot,
		Logger:        logger,
	})

	e, err := engine.New(engine.Options{
		Root:    root,
		Config:  cfg,
		Rules:   registry,
		VCS:     vcs,
		Content: acc,
		Syntax:  syntax.NewAnalyzer(),
		Logger:  logger,
	})
	if err != nil {
		return 1, err
	}

	report, err := e.Run(ctx, resolveArgs(ctx, acc, root, wd, files))
	if err != nil {
		return 1, err
	}
	printReport(w, report)
	return report.ExitCode(), nil
}

// resolveArgs makes relative arguments absolute. They are repository-relative;
// a path found in neither the working tree nor the index under root is
// retried relative to the invocation directory.
func resolveArgs(ctx context.Context, acc content.Reader, root, wd string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) {
			out[i] = f
			continue
		}
		fromRoot := filepath.Join(root, filepath.FromSlash(f))
		out[i] = fromRoot
		if wd == root || acc.Read(ctx, fromRoot).Found() {
			continue
		}
		if fromWD := filepath.Join(wd, filepath.FromSlash(f)); acc.Read(ctx, fromWD).Found() {
			out[i] = fromWD
		}
	}
	return out
}
