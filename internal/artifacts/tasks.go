package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TaskID is a task identifier. Top-level tasks use integers; subtasks may
// use dotted strings.
type TaskID string

// UnmarshalJSON accepts numbers and strings.
func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// Int returns the id as an integer when it is one.
func (id TaskID) Int() (int, bool) {
	n, err := strconv.Atoi(string(id))
	return n, err == nil
}

// Task is one entry of a task group.
type Task struct {
	ID           TaskID   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Details      string   `json:"details,omitempty"`
	TestStrategy string   `json:"testStrategy,omitempty"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority,omitempty"`
	Dependencies []TaskID `json:"dependencies,omitempty"`
	Subtasks     []Task   `json:"subtasks,omitempty"`
}

// TaskGroup is the task list generated for one requirement.
type TaskGroup struct {
	Metadata map[string]interface{} `json:"metadata"`
	Tasks    []Task                 `json:"tasks"`
}

// HasSelfCheck reports whether the first task is task 0.
func (g TaskGroup) HasSelfCheck() bool {
	if len(g.Tasks) == 0 {
		return false
	}
	n, ok := g.Tasks[0].ID.Int()
	return ok && n == 0
}

// TasksDocument is the central tasks document keyed by requirement id.
type TasksDocument map[string]TaskGroup

// ParseTasksDocument decodes the central tasks document.
func ParseTasksDocument(data []byte) (TasksDocument, error) {
	var doc TasksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tasks document: %w", err)
	}
	if doc == nil {
		doc = TasksDocument{}
	}
	return doc, nil
}

// Group looks up a requirement's task group. Keys compare case-insensitively.
func (d TasksDocument) Group(reqID string) (TaskGroup, bool) {
	if g, ok := d[reqID]; ok {
		return g, true
	}
	for _, k := range d.Keys() {
		if strings.EqualFold(k, reqID) {
			return d[k], true
		}
	}
	return TaskGroup{}, false
}

// Keys returns the requirement ids, sorted.
func (d TasksDocument) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
