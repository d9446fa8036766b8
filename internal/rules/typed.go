package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"compliance/internal/errors"
)

// decode fills out (pre-populated with defaults) from the rule-set document.
func decode(set RuleSet, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(set.Raw); err != nil {
		return invalid(set, err)
	}
	return nil
}

// secondsToDurationHook reads bare numbers as seconds.
var secondsToDurationHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

func invalid(set RuleSet, err error) error {
	return errors.New(errors.RuleSetInvalid, fmt.Sprintf("rule-set %q is invalid", set.Name), err).
		WithDetails(map[string]interface{}{"path": set.Path})
}

func compile(set RuleSet, field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalid(set, fmt.Errorf("%s: %w", field, err))
	}
	return re, nil
}

// Level is a finding severity named in a rule-set.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

func validLevel(l Level) bool { return l == LevelError || l == LevelWarning }

// ---- prd ----

// PRDRules configures the PRD checker.
type PRDRules struct {
	RequiredMetadataFields []string             `mapstructure:"required_metadata_fields"`
	MetadataValidation     map[string]FieldRule `mapstructure:"metadata_validation"`
	FileStructure          FileStructure        `mapstructure:"file_structure"`
	ContentValidation      ContentValidation    `mapstructure:"content_validation"`
	ValidStatuses          []string             `mapstructure:"valid_statuses"`

	Extras map[string]interface{} `mapstructure:",remain"`
}

// FieldRule validates one metadata field.
type FieldRule struct {
	Pattern  string   `mapstructure:"pattern"`
	Enum     []string `mapstructure:"enum"`
	Type     string   `mapstructure:"type"`
	MinItems int      `mapstructure:"min_items"`

	Regexp *regexp.Regexp `mapstructure:"-"`
}

// FileStructure lists structural requirements on the PRD body.
type FileStructure struct {
	RequireSections []string `mapstructure:"require_sections"`
}

// ContentValidation configures soft content checks.
type ContentValidation struct {
	MinLength                 int                      `mapstructure:"min_length"`
	RecommendedSections       []RecommendedSection     `mapstructure:"recommended_sections"`
	SectionDetailRequirements map[string]SectionDetail `mapstructure:"section_detail_requirements"`
}

// RecommendedSection is a section required only when its conditions apply.
type RecommendedSection struct {
	Name           string      `mapstructure:"name"`
	Description    string      `mapstructure:"description"`
	Level          Level       `mapstructure:"level"`
	ApplicableWhen []Condition `mapstructure:"applicable_when"`
}

// Condition matches a metadata field's value against a pattern.
type Condition struct {
	Pattern string `mapstructure:"pattern"`
	InField string `mapstructure:"in_field"`

	Regexp *regexp.Regexp `mapstructure:"-"`
}

// SectionDetail sets content requirements for a named section.
type SectionDetail struct {
	RequireKeywords []string `mapstructure:"require_keywords"`
	Format          string   `mapstructure:"format"`
	MinItems        int      `mapstructure:"min_items"`
}

// DecodePRD decodes a prd rule-set.
func DecodePRD(set RuleSet) (PRDRules, error) {
	var r PRDRules
	if err := decode(set, &r); err != nil {
		return PRDRules{}, err
	}
	if r.ValidStatuses == nil {
		r.ValidStatuses = []string{"draft", "review", "approved", "archived"}
	}
	for name, fr := range r.MetadataValidation {
		re, err := compile(set, "metadata_validation."+name+".pattern", fr.Pattern)
		if err != nil {
			return PRDRules{}, err
		}
		fr.Regexp = re
		switch fr.Type {
		case "", "list", "boolean":
		default:
			return PRDRules{}, invalid(set, fmt.Errorf("metadata_validation.%s.type: unknown type %q", name, fr.Type))
		}
		r.MetadataValidation[name] = fr
	}
	for i := range r.ContentValidation.RecommendedSections {
		sec := &r.ContentValidation.RecommendedSections[i]
		if sec.Level == "" {
			sec.Level = LevelWarning
		}
		if !validLevel(sec.Level) {
			return PRDRules{}, invalid(set, fmt.Errorf("recommended_sections[%d].level: %q", i, sec.Level))
		}
		for j := range sec.ApplicableWhen {
			re, err := compile(set, "applicable_when.pattern", sec.ApplicableWhen[j].Pattern)
			if err != nil {
				return PRDRules{}, err
			}
			sec.ApplicableWhen[j].Regexp = re
		}
	}
	return r, nil
}

// ---- testcase ----

// TestCaseRules configures the test-case catalog checker.
type TestCaseRules struct {
	Columns         []string     `mapstructure:"columns"`
	Extensions      []string     `mapstructure:"extensions"`
	Delimiter       string       `mapstructure:"delimiter"`
	ValidKinds      []string     `mapstructure:"valid_kinds"`
	ValidPriorities []string     `mapstructure:"valid_priorities"`
	MinTestcases    MinTestcases `mapstructure:"min_testcases"`

	Extras map[string]interface{} `mapstructure:",remain"`
}

// MinTestcases sets aggregate row minimums.
type MinTestcases struct {
	Total int `mapstructure:"total"`
	P0    int `mapstructure:"p0"`
}

// DefaultCatalogColumns is the catalog header, in order.
var DefaultCatalogColumns = []string{
	"caseId", "name", "kind", "priority", "linkedRequirement",
	"feature", "scenario", "precondition", "steps", "expected",
}

// DecodeTestCase decodes a testcase rule-set.
func DecodeTestCase(set RuleSet) (TestCaseRules, error) {
	r := TestCaseRules{Delimiter: ","}
	if err := decode(set, &r); err != nil {
		return TestCaseRules{}, err
	}
	if r.Columns == nil {
		r.Columns = append([]string(nil), DefaultCatalogColumns...)
	}
	if r.Extensions == nil {
		r.Extensions = []string{"csv"}
	}
	if r.ValidKinds == nil {
		r.ValidKinds = []string{"UNIT", "INTEGRATION", "E2E", "REGRESSION"}
	}
	if r.ValidPriorities == nil {
		r.ValidPriorities = []string{"P0", "P1", "P2", "P3"}
	}
	if len([]rune(r.Delimiter)) != 1 {
		return TestCaseRules{}, invalid(set, fmt.Errorf("delimiter must be a single character, got %q", r.Delimiter))
	}
	return r, nil
}

// ---- test ----

// TestRules configures the test-file checker.
type TestRules struct {
	// Locations maps a test kind to its expected directory (repo-relative).
	Locations map[string]string `mapstructure:"locations"`
	// Naming maps a test kind to its filename regex.
	Naming          map[string]string `mapstructure:"naming"`
	RequiredContent []string          `mapstructure:"required_content"`

	NamingRegexps map[string]*regexp.Regexp `mapstructure:"-"`
	Extras        map[string]interface{}    `mapstructure:",remain"`
}

const (
	pythonTestName = `^test_.+\.py$`
	specTestName   = `^test-.+\.spec\.(ts|tsx|js)$`
)

// DecodeTest decodes a test rule-set.
func DecodeTest(set RuleSet) (TestRules, error) {
	var r TestRules
	if err := decode(set, &r); err != nil {
		return TestRules{}, err
	}
	r.Locations = withDefaults(r.Locations, map[string]string{
		"unit":            "backend/tests/unit",
		"integration":     "backend/tests/integration",
		"regression":      "backend/tests/regression",
		"e2e-smoke":       "frontend/tests/e2e/smoke",
		"e2e-regression":  "frontend/tests/e2e/regression",
		"e2e-performance": "frontend/tests/e2e/performance",
	})
	r.Naming = withDefaults(r.Naming, map[string]string{
		"unit":            pythonTestName,
		"integration":     pythonTestName,
		"regression":      pythonTestName,
		"e2e-smoke":       specTestName,
		"e2e-regression":  specTestName,
		"e2e-performance": specTestName,
	})
	r.NamingRegexps = make(map[string]*regexp.Regexp, len(r.Naming))
	for kind, pattern := range r.Naming {
		re, err := compile(set, "naming."+kind, pattern)
		if err != nil {
			return TestRules{}, err
		}
		r.NamingRegexps[kind] = re
	}
	return r, nil
}

// withDefaults adds the entries of defaults missing from m.
func withDefaults(m, defaults map[string]string) map[string]string {
	if m == nil {
		m = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

// Requires reports whether RequiredContent lists item.
func (r TestRules) Requires(item string) bool {
	for _, c := range r.RequiredContent {
		if c == item {
			return true
		}
	}
	return false
}

// ---- code ----

// CodeRules configures the code checker.
type CodeRules struct {
	Traceability           Traceability           `mapstructure:"traceability"`
	ModificationValidation ModificationValidation `mapstructure:"modification_validation"`
	Paths                  CodePaths              `mapstructure:"paths"`
	Quality                Quality                `mapstructure:"quality"`

	Extras map[string]interface{} `mapstructure:",remain"`
}

// Traceability toggles the linkage phases.
type Traceability struct {
	RequirePRDLink  bool `mapstructure:"require_prd_link"`
	RequireTestLink bool `mapstructure:"require_test_link"`
	RequireTaskLink bool `mapstructure:"require_task_link"`
	ScanLines       int  `mapstructure:"scan_lines"`
}

// ModificationValidation toggles change-sensitive checks.
type ModificationValidation struct {
	RequirePRDApprovalForDeletion bool     `mapstructure:"require_prd_approval_for_deletion"`
	RequireAPIContractConsistency bool     `mapstructure:"require_api_contract_consistency"`
	BypassTags                    []string `mapstructure:"bypass_tags"`
}

// CodePaths classifies source files with doublestar globs.
type CodePaths struct {
	Backend   []string `mapstructure:"backend"`
	Frontend  []string `mapstructure:"frontend"`
	API       []string `mapstructure:"api"`
	TestsRoot string   `mapstructure:"tests_root"`
	E2EDir    string   `mapstructure:"e2e_dir"`
}

// Quality toggles best-effort documentation hints.
type Quality struct {
	RequireDocstrings bool `mapstructure:"require_docstrings"`
	RequireTypeHints  bool `mapstructure:"require_type_hints"`
	RequireJSDoc      bool `mapstructure:"require_jsdoc"`
}

// DecodeCode decodes a code rule-set.
func DecodeCode(set RuleSet) (CodeRules, error) {
	r := CodeRules{
		Traceability: Traceability{ScanLines: 20},
		Paths: CodePaths{
			TestsRoot: "backend/tests",
			E2EDir:    "frontend/tests/e2e",
		},
	}
	if err := decode(set, &r); err != nil {
		return CodeRules{}, err
	}
	if r.ModificationValidation.BypassTags == nil {
		r.ModificationValidation.BypassTags = []string{"[BUGFIX]", "[REFACTOR]", "[HOTFIX]"}
	}
	if r.Paths.Backend == nil {
		r.Paths.Backend = []string{"backend/apps/**/*.py"}
	}
	if r.Paths.Frontend == nil {
		r.Paths.Frontend = []string{"frontend/src/**/*.{ts,tsx,js,jsx}"}
	}
	if r.Paths.API == nil {
		r.Paths.API = []string{
			"backend/apps/**/endpoints.py", "backend/apps/**/endpoints/*.py",
			"backend/apps/**/serializers.py", "backend/apps/**/serializers/*.py",
		}
	}
	if r.Traceability.ScanLines <= 0 {
		r.Traceability.ScanLines = 20
	}
	return r, nil
}

// ---- task ----

// TaskRules configures the task checker.
type TaskRules struct {
	ValidStates          []string `mapstructure:"valid_states"`
	MinDescriptionLength int      `mapstructure:"min_description_length"`
	RequireSelfCheck     bool     `mapstructure:"require_self_check"`

	Extras map[string]interface{} `mapstructure:",remain"`
}

// DecodeTask decodes a task rule-set.
func DecodeTask(set RuleSet) (TaskRules, error) {
	r := TaskRules{MinDescriptionLength: 50, RequireSelfCheck: true}
	if err := decode(set, &r); err != nil {
		return TaskRules{}, err
	}
	if r.ValidStates == nil {
		r.ValidStates = []string{"pending", "in-progress", "done", "blocked", "cancelled"}
	}
	return r, nil
}

// ---- commit (test runner) ----

// RunnerRules configures the pre-commit test runner.
type RunnerRules struct {
	Command       []string      `mapstructure:"command"`
	E2ECommand    []string      `mapstructure:"e2e_command"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RelevantPaths []string      `mapstructure:"relevant_paths"`
	E2EPaths      []string      `mapstructure:"e2e_paths"`
	Extensions    []string      `mapstructure:"extensions"`
	Container     Container     `mapstructure:"container"`

	Extras map[string]interface{} `mapstructure:",remain"`
}

// Container configures test execution inside Docker Compose.
type Container struct {
	// Mode is auto, always or never.
	Mode        string `mapstructure:"mode"`
	ComposeFile string `mapstructure:"compose_file"`
	Service     string `mapstructure:"service"`
	// StripPrefix is removed from test paths passed into the container.
	StripPrefix string `mapstructure:"strip_prefix"`
}

// DefaultRunnerTimeout bounds the test invocation.
const DefaultRunnerTimeout = 5 * time.Minute

// DecodeRunner decodes a commit (test runner) rule-set.
func DecodeRunner(set RuleSet) (RunnerRules, error) {
	r := RunnerRules{
		Timeout: DefaultRunnerTimeout,
		Container: Container{
			Mode:        "auto",
			ComposeFile: "docker-compose.yml",
			Service:     "backend",
			StripPrefix: "backend/",
		},
	}
	if err := decode(set, &r); err != nil {
		return RunnerRules{}, err
	}
	if r.Command == nil {
		r.Command = []string{"python", "-m", "pytest", "-q"}
	}
	if len(r.Command) == 0 {
		return RunnerRules{}, invalid(set, fmt.Errorf("command must not be empty"))
	}
	if r.RelevantPaths == nil {
		r.RelevantPaths = []string{"backend/apps/**", "backend/tests/**", "frontend/src/**", "frontend/tests/e2e/**"}
	}
	if r.E2EPaths == nil {
		r.E2EPaths = []string{"frontend/src/**", "frontend/tests/e2e/**"}
	}
	if r.Extensions == nil {
		r.Extensions = []string{".py", ".ts", ".tsx", ".js", ".jsx"}
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultRunnerTimeout
	}
	switch r.Container.Mode {
	case "auto", "always", "never":
	default:
		return RunnerRules{}, invalid(set, fmt.Errorf("container.mode: %q", r.Container.Mode))
	}
	return r, nil
}
