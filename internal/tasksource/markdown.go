package tasksource

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"triagent/internal/logging"
	"triagent/internal/types"
)

// taskMeta is the YAML block under each task heading.
type taskMeta struct {
	Status     string   `yaml:"status,omitempty"`
	Priority   string   `yaml:"priority,omitempty"`
	Labels     []string `yaml:"labels,omitempty"`
	Assignees  []string `yaml:"assignees,omitempty"`
	Due        string   `yaml:"due,omitempty"`
	DependsOn  []string `yaml:"depends_on,omitempty"`
	Complexity *int     `yaml:"complexity,omitempty"`
	Created    string   `yaml:"created,omitempty"`
	Updated    string   `yaml:"updated,omitempty"`
	URL        string   `yaml:"url,omitempty"`
}

// markdownTask is one parsed section of the task file.
type markdownTask struct {
	task     types.PickableTask
	comments []Comment
}

// MarkdownAdapter serves tasks from a single markdown file. Sections
// look like:
//
//	## TASK-1: Fix the login retry loop
//	```yaml
//	status: open
//	priority: high
//	labels: [bug, auth]
//	```
//	Free-form description.
//	### Comments
//	- 2024-06-15T10:00:00Z alice: looked into it, repro is flaky
type MarkdownAdapter struct {
	mu    sync.RWMutex
	path  string
	tasks []markdownTask
	now   func() time.Time
}

// NewMarkdownAdapter loads the task file at path. A missing file is not
// an error; the adapter just reports itself unconfigured.
func NewMarkdownAdapter(path string) (*MarkdownAdapter, error) {
	a := &MarkdownAdapter{path: path, now: time.Now}
	if err := a.Reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return a, nil
}

var taskHeading = regexp.MustCompile(`^##\s+([^\s:]+):\s*(.+)$`)
var commentLine = regexp.MustCompile(`^-\s+(\S+)\s+([^:]+):\s*(.*)$`)

// Reload re-reads the backing file, replacing the in-memory task set.
func (a *MarkdownAdapter) Reload() error {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return err
	}

	tasks, err := parseTaskFile(string(raw))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", a.path, err)
	}

	a.mu.Lock()
	a.tasks = tasks
	a.mu.Unlock()
	logging.Source("Loaded %d tasks from %s", len(tasks), a.path)
	return nil
}

func parseTaskFile(content string) ([]markdownTask, error) {
	var tasks []markdownTask
	var current *markdownTask
	var descLines []string
	inYAML := false
	inComments := false
	var yamlLines []string

	flush := func() error {
		if current == nil {
			return nil
		}
		current.task.Description = strings.TrimSpace(strings.Join(descLines, "\n"))
		current.task.CommentCount = len(current.comments)
		tasks = append(tasks, *current)
		current = nil
		descLines = nil
		return nil
	}

	for _, line := range strings.Split(content, "\n") {
		if m := taskHeading.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			current = &markdownTask{task: types.PickableTask{ID: m[1], Title: strings.TrimSpace(m[2]), Status: types.TaskOpen}}
			inYAML, inComments = false, false
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```yaml"):
			inYAML = true
			yamlLines = nil
		case inYAML && trimmed == "```":
			inYAML = false
			if err := applyMeta(&current.task, strings.Join(yamlLines, "\n")); err != nil {
				return nil, fmt.Errorf("task %s: %w", current.task.ID, err)
			}
		case inYAML:
			yamlLines = append(yamlLines, line)
		case strings.HasPrefix(trimmed, "### Comments"):
			inComments = true
		case inComments:
			if m := commentLine.FindStringSubmatch(trimmed); m != nil {
				ts, _ := time.Parse(time.RFC3339, m[1])
				current.comments = append(current.comments, Comment{
					CreatedAt: ts,
					Author:    strings.TrimSpace(m[2]),
					Body:      m[3],
				})
			}
		default:
			descLines = append(descLines, line)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func applyMeta(task *types.PickableTask, block string) error {
	var meta taskMeta
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return fmt.Errorf("bad metadata block: %w", err)
	}

	if meta.Status != "" {
		task.Status = types.TaskStatus(meta.Status)
	}
	if meta.Priority != "" {
		task.Priority = types.TaskPriority(meta.Priority)
	}
	task.Labels = meta.Labels
	task.Assignees = meta.Assignees
	task.DependsOn = meta.DependsOn
	task.EstimatedComplexity = meta.Complexity
	task.URL = meta.URL

	if meta.Due != "" {
		due, err := parseDate(meta.Due)
		if err != nil {
			return fmt.Errorf("bad due date %q: %w", meta.Due, err)
		}
		task.DueDate = &due
	}
	if meta.Created != "" {
		if ts, err := parseDate(meta.Created); err == nil {
			task.CreatedAt = ts
		}
	}
	if meta.Updated != "" {
		if ts, err := parseDate(meta.Updated); err == nil {
			task.UpdatedAt = ts
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// ListTasks returns tasks matching the filter.
func (a *MarkdownAdapter) ListTasks(filter ListFilter) ([]types.PickableTask, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []types.PickableTask
	for _, t := range a.tasks {
		if filter.Status != "" && t.task.Status != filter.Status {
			continue
		}
		if filter.Label != "" && !containsFold(t.task.Labels, filter.Label) {
			continue
		}
		if filter.Assignee != "" && !containsFold(t.task.Assignees, filter.Assignee) {
			continue
		}
		out = append(out, t.task)
	}
	return out, nil
}

func containsFold(list []string, want string) bool {
	want = strings.TrimPrefix(strings.ToLower(want), "@")
	for _, item := range list {
		if strings.TrimPrefix(strings.ToLower(item), "@") == want {
			return true
		}
	}
	return false
}

// GetTask returns one task by id, nil when absent.
func (a *MarkdownAdapter) GetTask(id string) (*types.PickableTask, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.tasks {
		if t.task.ID == id {
			task := t.task
			return &task, nil
		}
	}
	return nil, nil
}

// UpdateStatus rewrites the task's status and persists the file.
func (a *MarkdownAdapter) UpdateStatus(id string, status types.TaskStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.tasks {
		if a.tasks[i].task.ID == id {
			a.tasks[i].task.Status = status
			a.tasks[i].task.UpdatedAt = a.now()
			return a.saveLocked()
		}
	}
	return fmt.Errorf("unknown task %s", id)
}

// AddComment appends a comment to the task and persists the file.
func (a *MarkdownAdapter) AddComment(id, author, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.tasks {
		if a.tasks[i].task.ID == id {
			a.tasks[i].comments = append(a.tasks[i].comments, Comment{
				Author:    author,
				Body:      body,
				CreatedAt: a.now(),
			})
			a.tasks[i].task.CommentCount = len(a.tasks[i].comments)
			return a.saveLocked()
		}
	}
	return fmt.Errorf("unknown task %s", id)
}

// GetComments returns a task's comments in file order.
func (a *MarkdownAdapter) GetComments(id string) ([]Comment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.tasks {
		if t.task.ID == id {
			out := make([]Comment, len(t.comments))
			copy(out, t.comments)
			return out, nil
		}
	}
	return nil, fmt.Errorf("unknown task %s", id)
}

// IsConfigured reports whether the backing file exists.
func (a *MarkdownAdapter) IsConfigured() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// ConfigInstructions tells the user how to set the adapter up.
func (a *MarkdownAdapter) ConfigInstructions() string {
	return fmt.Sprintf("Create %s with one '## <id>: <title>' section per task; see docs for the metadata block format.", a.path)
}

// saveLocked re-renders the whole file. Caller holds the write lock.
func (a *MarkdownAdapter) saveLocked() error {
	var b strings.Builder
	b.WriteString("# Tasks\n")
	for _, t := range a.tasks {
		b.WriteString("\n## " + t.task.ID + ": " + t.task.Title + "\n")
		b.WriteString("```yaml\n")
		b.WriteString(renderMeta(t.task))
		b.WriteString("```\n")
		if t.task.Description != "" {
			b.WriteString(t.task.Description + "\n")
		}
		if len(t.comments) > 0 {
			b.WriteString("### Comments\n")
			for _, c := range t.comments {
				b.WriteString(fmt.Sprintf("- %s %s: %s\n", c.CreatedAt.UTC().Format(time.RFC3339), c.Author, c.Body))
			}
		}
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("failed to replace task file: %w", err)
	}
	return nil
}

func renderMeta(t types.PickableTask) string {
	meta := taskMeta{
		Status:     string(t.Status),
		Priority:   string(t.Priority),
		Labels:     t.Labels,
		Assignees:  t.Assignees,
		DependsOn:  t.DependsOn,
		Complexity: t.EstimatedComplexity,
		URL:        t.URL,
	}
	if t.DueDate != nil {
		meta.Due = t.DueDate.UTC().Format("2006-01-02")
	}
	if !t.CreatedAt.IsZero() {
		meta.Created = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !t.UpdatedAt.IsZero() {
		meta.Updated = t.UpdatedAt.UTC().Format(time.RFC3339)
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(out)
}
