package checkers

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"compliance/internal/artifacts"
	"compliance/internal/rules"
)

var taskStatusLine = regexp.MustCompile(`(?im)^\s*[-*]?\s*status\s*:\s*([A-Za-z_-]+)`)

// TaskChecker validates task documents, structured or textual.
type TaskChecker struct {
	rules rules.TaskRules
	env   Env
}

// NewTaskChecker decodes the task rule-set.
func NewTaskChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodeTask(set)
	if err != nil {
		return nil, err
	}
	return &TaskChecker{rules: r, env: env}, nil
}

// Name implements Checker.
func (k *TaskChecker) Name() string { return "task" }

// Check implements Checker.
func (k *TaskChecker) Check(ctx context.Context, p string) Result {
	rel := k.env.Resolver.Canonical(p)
	c := newCollector(rel)

	blob := k.env.Content.Read(ctx, p)
	if !blob.Found() {
		c.errorf("task file not found in working tree or index")
		return c.result()
	}

	switch strings.ToLower(path.Ext(rel)) {
	case ".json", ".yaml", ".yml":
		k.checkStructured(c, rel, blob.Data)
	default:
		k.checkText(c, blob.Text())
	}
	return c.result()
}

func (k *TaskChecker) checkStructured(c *collector, rel string, data []byte) {
	var doc interface{}
	var err error
	if strings.EqualFold(path.Ext(rel), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		c.add(SeverityError, "task document cannot be parsed: "+err.Error(), "")
		return
	}

	switch v := doc.(type) {
	case []interface{}:
		k.checkTaskList("", v, c)
	case map[string]interface{}:
		if tasks, ok := v["tasks"].([]interface{}); ok {
			k.checkTaskList("", tasks, c)
			return
		}
		// Central document keyed by requirement id.
		groups := artifacts.TasksDocument{}
		if err := json.Unmarshal(mustJSON(v), &groups); err != nil {
			c.warnf("task document is neither a task list nor a mapping of task groups")
			return
		}
		for _, key := range groups.Keys() {
			g := groups[key]
			if k.rules.RequireSelfCheck && len(g.Tasks) > 0 && !g.HasSelfCheck() {
				c.add(SeverityWarning, fmt.Sprintf("task group %s does not start with self-check task 0", key),
					"regenerate tasks for "+key)
			}
			raw, _ := v[key].(map[string]interface{})
			list, _ := raw["tasks"].([]interface{})
			k.checkTaskList(key, list, c)
		}
	case nil:
		c.warnf("task document is empty")
	default:
		c.warnf("task document has unexpected top-level type %T", v)
	}
}

func (k *TaskChecker) checkTaskList(group string, tasks []interface{}, c *collector) {
	prefix := ""
	if group != "" {
		prefix = group + ": "
	}
	for i, item := range tasks {
		task, ok := item.(map[string]interface{})
		if !ok {
			c.warnf("%stask #%d is not a mapping", prefix, i+1)
			continue
		}
		label := fmt.Sprintf("task #%d", i+1)
		if id, ok := task["id"]; ok {
			label = fmt.Sprintf("task %v", id)
		}
		status, ok := task["status"]
		if !ok {
			c.warnf("%s%s has no status field", prefix, label)
			continue
		}
		if s := fmt.Sprint(status); !contains(k.rules.ValidStates, s) {
			c.add(SeverityWarning, fmt.Sprintf("%s%s has unknown status '%s'", prefix, label, s),
				"use one of: "+strings.Join(k.rules.ValidStates, ", "))
		}
	}
}

func (k *TaskChecker) checkText(c *collector, text string) {
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < k.rules.MinDescriptionLength {
		c.warnf("task description too short (%d characters, minimum %d)", n, k.rules.MinDescriptionLength)
	}
	if m := taskStatusLine.FindStringSubmatch(text); m != nil {
		status := strings.ToLower(m[1])
		if !contains(k.rules.ValidStates, status) {
			c.add(SeverityError, fmt.Sprintf("invalid task status '%s'", m[1]),
				"use one of: "+strings.Join(k.rules.ValidStates, ", "))
		}
	}
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
