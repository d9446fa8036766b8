// Package engine runs the configured checkers over a list of files, folds
// the results into a report and records the run in the audit log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"compliance/internal/audit"
	"compliance/internal/backends/git"
	"compliance/internal/checkers"
	"compliance/internal/config"
	"compliance/internal/content"
	"compliance/internal/dispatch"
	"compliance/internal/rules"
	"compliance/internal/slogutil"
	"compliance/internal/trace"
)

// Options configures an Engine. Only Root and Config are required.
type Options struct {
	Root   string
	Config config.Config
	// Rules defaults to an empty registry.
	Rules *rules.Registry
	// Checkers defaults to checkers.DefaultRegistry().
	Checkers *checkers.Registry

	// VCS defaults to the git subprocess adapter.
	VCS git.Backend
	// Content defaults to an accessor over VCS rooted at Root.
	Content content.Reader
	Syntax  checkers.Analyzer
	Runner  checkers.CommandRunner

	// Audit defaults to a writer built from Config when auditing is enabled.
	Audit  *audit.Writer
	Logger *slog.Logger
}

// Engine is immutable after New and may run several times.
type Engine struct {
	root     string
	cfg      config.Config
	matcher  *dispatch.Matcher
	resolver *trace.Resolver
	checkers map[string]checkers.Checker
	audit    *audit.Writer
	logger   *slog.Logger
}

// New instantiates one checker per loaded rule-set with a registered kind.
// Rule-sets whose options fail validation are logged and skipped, so files
// mapped to them get a "checker not available" warning.
func New(opts Options) (*Engine, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("engine: repository root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve root: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Rules == nil {
		opts.Rules = rules.NewRegistry()
	}
	if opts.Checkers == nil {
		opts.Checkers = checkers.DefaultRegistry()
	}
	if opts.VCS == nil {
		opts.VCS = git.NewAdapter(0, opts.Logger)
	}
	if opts.Content == nil {
		opts.Content = content.NewAccessor(opts.VCS, content.Options{
			WorkDir:       root,
			ContainerRoot: opts.Config.Engine.ContainerRoot,
			Logger:        opts.Logger,
		})
	}
	if opts.Runner == nil {
		opts.Runner = checkers.ExecRunner{}
	}
	if opts.Audit == nil && opts.Config.Engine.EnableAuditLog {
		opts.Audit = audit.NewWriter(audit.Options{
			RepoRoot: root,
			LogPath:  opts.Config.Engine.AuditLogPath,
			DBPath:   opts.Config.Engine.AuditDBPath,
			Logger:   opts.Logger,
		})
	}

	e := &Engine{
		root:     root,
		cfg:      opts.Config,
		matcher:  dispatch.FromConfig(root, opts.Config),
		resolver: trace.NewResolver(root, opts.Content),
		checkers: make(map[string]checkers.Checker),
		logger:   opts.Logger,
	}
	if opts.Config.Engine.EnableAuditLog {
		e.audit = opts.Audit
	}

	env := checkers.Env{
		Root:     root,
		Content:  opts.Content,
		VCS:      opts.VCS,
		Resolver: e.resolver,
		Syntax:   opts.Syntax,
		Runner:   opts.Runner,
		Strict:   opts.Config.Engine.StrictMode,
		Logger:   opts.Logger,
	}
	for _, name := range opts.Rules.Names() {
		set, _ := opts.Rules.Get(name)
		ctor, ok := opts.Checkers.Lookup(name)
		if !ok {
			e.logger.Debug("No checker registered for rule-set", "name", name, "path", set.Path)
			continue
		}
		chk, err := ctor(set, env)
		if err != nil {
			e.logger.Error("Skipping rule-set", "name", name, "error", err.Error())
			continue
		}
		e.checkers[name] = chk
	}
	return e, nil
}

// Available reports whether a checker is loaded for the rule name.
func (e *Engine) Available(name string) bool {
	_, ok := e.checkers[name]
	return ok
}

// Run checks paths and returns the report. Results keep the input order
// whatever the worker count. When ctx is cancelled, dispatch stops and the
// partial report is returned with Interrupted set; no audit record is
// written for an interrupted run.
func (e *Engine) Run(ctx context.Context, paths []string) (*Report, error) {
	results := make([]*FileResult, len(paths))

	var g errgroup.Group
	g.SetLimit(max(1, e.cfg.Engine.Workers))
	for i, p := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = e.checkFile(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Strict: e.cfg.Engine.StrictMode}
	for _, r := range results {
		if r != nil {
			report.add(*r)
		}
	}
	if ctx.Err() != nil {
		report.Interrupted = true
		e.logger.Warn("Run interrupted", "checked", report.Summary.Total, "requested", len(paths))
		return report, nil
	}

	if e.audit != nil && report.Summary.Total > 0 {
		p, err := e.audit.Append(report.auditRecord())
		if err != nil {
			report.AuditErr = err
			e.logger.Warn("Audit log not written", "error", err.Error())
		} else {
			report.AuditPath = p
			e.logger.Debug("Audit record appended", "path", p)
		}
	}
	return report, nil
}

// checkFile returns nil when the file is excluded or matches no rule.
func (e *Engine) checkFile(ctx context.Context, p string) *FileResult {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.root, filepath.FromSlash(p))
	}
	if e.matcher.Excluded(abs) {
		e.logger.Debug("Excluded", "path", p)
		return nil
	}
	names := e.matcher.Match(abs)
	if len(names) == 0 {
		e.logger.Debug("No rules match", "path", p)
		return nil
	}

	rel := e.resolver.Canonical(abs)
	fr := &FileResult{Path: rel, Rules: names}
	for _, name := range names {
		chk, ok := e.checkers[name]
		if !ok {
			fr.Warnings = append(fr.Warnings, checkers.Finding{
				Severity: checkers.SeverityWarning,
				Message:  fmt.Sprintf("checker not available: %s", name),
				File:     rel,
			})
			continue
		}
		res := e.invoke(ctx, chk, abs, rel)
		fr.Errors = append(fr.Errors, stamp(res.Errors, rel)...)
		fr.Warnings = append(fr.Warnings, stamp(res.Warnings, rel)...)
	}
	fr.Status = classify(fr)
	return fr
}

// invoke converts a checker panic into an error finding.
func (e *Engine) invoke(ctx context.Context, chk checkers.Checker, abs, rel string) (res checkers.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Checker panicked", "checker", chk.Name(), "path", rel, "panic", fmt.Sprint(r))
			e.logger.Debug("Checker stack", "stack", string(debug.Stack()))
			res = checkers.Result{Errors: []checkers.Finding{{
				Severity: checkers.SeverityError,
				Message:  fmt.Sprintf("checker execution failed: %v", r),
				File:     rel,
			}}}
		}
	}()
	return chk.Check(ctx, abs)
}

func stamp(findings []checkers.Finding, rel string) []checkers.Finding {
	for i := range findings {
		if findings[i].File == "" {
			findings[i].File = rel
		}
	}
	return findings
}
