package checkers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"compliance/internal/paths"
	"compliance/internal/rules"
)

// outputTail bounds the command output attached to a failure hint.
const outputTail = 2000

// TestRunnerChecker runs the product's test suite for relevant files before
// a commit.
type TestRunnerChecker struct {
	rules rules.RunnerRules
	env   Env

	// LookPath and InContainer are replaceable in tests.
	LookPath    func(string) (string, error)
	InContainer func() bool
}

// NewTestRunnerChecker decodes the commit rule-set.
func NewTestRunnerChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodeRunner(set)
	if err != nil {
		return nil, err
	}
	if env.Runner == nil {
		env.Runner = ExecRunner{}
	}
	return &TestRunnerChecker{
		rules:       r,
		env:         env,
		LookPath:    exec.LookPath,
		InContainer: inContainer,
	}, nil
}

// Name implements Checker.
func (k *TestRunnerChecker) Name() string { return "commit" }

// Check implements Checker.
func (k *TestRunnerChecker) Check(ctx context.Context, p string) Result {
	rel := k.env.Resolver.Canonical(p)
	c := newCollector(rel)
	if !k.relevant(rel) {
		return c.result()
	}

	tests := k.existing(ctx, k.DeriveTests(rel))
	if len(tests) > 0 {
		k.run(ctx, c, k.pytestCommand(tests), "tests")
	}
	if len(k.rules.E2ECommand) > 0 && matchesAny(k.rules.E2EPaths, rel) {
		k.run(ctx, c, Command{Dir: k.env.Root, Args: k.rules.E2ECommand, Timeout: k.rules.Timeout}, "e2e tests")
	}
	return c.result()
}

func (k *TestRunnerChecker) relevant(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	if !contains(k.rules.Extensions, ext) {
		return false
	}
	return matchesAny(k.rules.RelevantPaths, rel)
}

// DeriveTests maps a source file to the backend tests that cover it. Python
// test files map to themselves.
func (k *TestRunnerChecker) DeriveTests(rel string) []string {
	base := path.Base(rel)
	if path.Ext(base) != ".py" {
		return nil
	}
	if strings.HasPrefix(base, "test_") {
		return []string{rel}
	}
	if base == "__init__.py" {
		return nil
	}
	module := appName(rel)
	if module == "" {
		return nil
	}
	root := "backend/tests"
	if i := strings.Index(rel, "/apps/"); i >= 0 {
		root = path.Join(rel[:i], "tests")
	}
	return []string{path.Join(root, "unit", "test_"+module+"_"+base)}
}

// existing keeps the tests present on disk or in the index, de-duplicated.
func (k *TestRunnerChecker) existing(ctx context.Context, tests []string) []string {
	seen := make(map[string]bool, len(tests))
	var out []string
	for _, t := range tests {
		if seen[t] {
			continue
		}
		seen[t] = true
		abs := k.env.Resolver.Abs(t)
		if paths.IsFile(abs) || k.env.Content.Read(ctx, abs).Found() {
			out = append(out, t)
		}
	}
	return out
}

func (k *TestRunnerChecker) pytestCommand(tests []string) Command {
	var args []string
	useContainer := k.useContainer()
	if useContainer {
		cr := k.rules.Container
		args = append(args, "docker", "compose", "-f", cr.ComposeFile, "exec", "-T", cr.Service)
	}
	if k.usesPoetry(useContainer) {
		args = append(args, "poetry", "run")
	}
	args = append(args, k.rules.Command...)
	for _, t := range tests {
		if useContainer {
			t = strings.TrimPrefix(t, k.rules.Container.StripPrefix)
		}
		args = append(args, t)
	}
	return Command{Dir: k.env.Root, Args: args, Timeout: k.rules.Timeout}
}

func (k *TestRunnerChecker) useContainer() bool {
	switch k.rules.Container.Mode {
	case "never":
		return false
	case "always":
		return true
	}
	if k.InContainer() {
		return false
	}
	if !paths.IsFile(k.env.Resolver.Abs(k.rules.Container.ComposeFile)) {
		return false
	}
	_, err := k.LookPath("docker")
	return err == nil
}

type pyproject struct {
	Tool struct {
		Poetry map[string]interface{} `toml:"poetry"`
	} `toml:"tool"`
}

// usesPoetry reports whether the backend's pyproject.toml declares
// [tool.poetry].
func (k *TestRunnerChecker) usesPoetry(container bool) bool {
	candidates := []string{"pyproject.toml"}
	if container && k.rules.Container.StripPrefix != "" {
		candidates = []string{path.Join(k.rules.Container.StripPrefix, "pyproject.toml"), "pyproject.toml"}
	}
	for _, c := range candidates {
		data, err := os.ReadFile(k.env.Resolver.Abs(c))
		if err != nil {
			continue
		}
		var doc pyproject
		if err := toml.Unmarshal(data, &doc); err != nil {
			k.env.log().Debug("Cannot parse pyproject.toml", "path", c, "error", err.Error())
			continue
		}
		return doc.Tool.Poetry != nil
	}
	return false
}

func (k *TestRunnerChecker) run(ctx context.Context, c *collector, cmd Command, what string) {
	k.env.log().Info("Running tests", "command", strings.Join(cmd.Args, " "))
	res := k.env.Runner.Run(ctx, cmd)
	switch {
	case res.NotFound:
		c.add(SeverityWarning, what+" could not be run: "+cmd.Args[0]+" not found",
			"install "+cmd.Args[0]+" or run the tests manually")
	case res.TimedOut:
		c.add(SeverityError, fmt.Sprintf("%s timed out after %s", what, cmd.Timeout),
			"inspect slow tests: pytest --durations=10")
	case res.Err != nil:
		c.add(SeverityWarning, what+" could not be run: "+res.Err.Error(), "")
	case res.ExitCode != 0:
		c.add(SeverityError, what+" failed; commit blocked", tail(res.Stdout+res.Stderr, outputTail))
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func inContainer() bool {
	return paths.Exists("/.dockerenv")
}
