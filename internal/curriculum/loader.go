package curriculum

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrNoTemplate is returned when no template answers a goal.
var ErrNoTemplate = errors.New("no curriculum template for goal")

// Loader loads pre-authored curriculum templates from YAML files.
type Loader struct {
	rootDir   string
	templates map[string]Template
	byGoal    map[string]string // folded goal -> template id
	mu        sync.RWMutex
}

// NewLoader creates a loader and loads every template under rootDir. A
// missing directory yields an empty loader.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:   rootDir,
		templates: make(map[string]Template),
		byGoal:    make(map[string]string),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum templates: %w", err)
	}

	slog.Info("curriculum templates loaded", "dir", rootDir, "templates", len(l.templates))
	return l, nil
}

// Get returns a template by id.
func (l *Loader) Get(id string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	return t, ok
}

// Match returns the template whose goals include goal, ignoring case and
// Unicode normalization differences.
func (l *Loader) Match(goal string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byGoal[FoldGoal(goal)]
	if !ok {
		return Template{}, false
	}
	return l.templates[id], true
}

// Len returns the number of loaded templates.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// Generate serves a curriculum from a matching template.
func (l *Loader) Generate(_ context.Context, goal string) (Curriculum, error) {
	t, ok := l.Match(goal)
	if !ok {
		return Curriculum{}, fmt.Errorf("%w: %q", ErrNoTemplate, goal)
	}
	return t.Curriculum, nil
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(l.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadTemplate(path)
		}
		return nil
	})
}

func (l *Loader) loadTemplate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		slog.Warn("skipping invalid template YAML", "path", path, "error", err)
		return nil
	}
	if t.ID == "" {
		return nil // not a template file
	}
	if err := t.Curriculum.Validate(); err != nil {
		slog.Warn("skipping invalid template", "path", path, "id", t.ID, "error", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[t.ID] = t
	for _, g := range t.Goals {
		l.byGoal[FoldGoal(g)] = t.ID
	}
	return nil
}

// FoldGoal normalizes a learning goal for matching: NFC, case-folded,
// whitespace collapsed.
func FoldGoal(goal string) string {
	folded := cases.Fold().String(norm.NFC.String(goal))
	return strings.Join(strings.Fields(folded), " ")
}
