package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"council/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Template is one prompt. Body (and System, if set) are text/template sources.
type Template struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Version     int    `yaml:"version"`
	System      string `yaml:"system"`
	Body        string `yaml:"body"`

	system *template.Template
	body   *template.Template
}

// FileConfig is the layout of the override file.
type FileConfig struct {
	Prompts map[string]Template `yaml:"prompts"`
}

// Snapshot is an immutable view of the registry at one version.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates map[string]Template
}

type ChangeListener func(Snapshot)

// Registry serves the built-in prompts, overridden per id by an optional
// YAML file that is reloaded when it changes on disk.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry builds the registry. An empty path serves built-ins only.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if r.path == "" {
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("prompt reload failed (%s): %v", evt.Name, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange registers fn to run after every successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Render executes the template id against data on the current snapshot.
func (r *Registry) Render(id string, data any) (system, user string, err error) {
	return r.Snapshot().Render(id, data)
}

func (s Snapshot) Render(id string, data any) (system, user string, err error) {
	tpl, ok := s.Templates[id]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt: %s", id)
	}
	if user, err = execute(tpl.body, data); err != nil {
		return "", "", fmt.Errorf("render prompt %s: %w", id, err)
	}
	if tpl.system != nil {
		if system, err = execute(tpl.system, data); err != nil {
			return "", "", fmt.Errorf("render prompt %s system: %w", id, err)
		}
	}
	return system, user, nil
}

func execute(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Registry) reload() error {
	templates := make(map[string]Template)
	for id, tpl := range builtinTemplates() {
		norm, err := normalizeTemplate(id, tpl)
		if err != nil {
			return err
		}
		templates[norm.ID] = norm
	}
	if r.path != "" {
		cfg, err := readPromptFile(r.path)
		if err != nil {
			return err
		}
		for name, tpl := range cfg.Prompts {
			norm, err := normalizeTemplate(name, tpl)
			if err != nil {
				return err
			}
			templates[norm.ID] = norm
		}
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: templates,
	}
	r.mu.Unlock()
	if r.path != "" {
		logger.Infof("prompt registry loaded %d templates from %s", len(templates), filepath.Base(r.path))
	}
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("prompt listener")
			cb(snap)
		}(fn)
	}
}

func normalizeTemplate(name string, tpl Template) (Template, error) {
	tpl.ID = strings.TrimSpace(tpl.ID)
	if tpl.ID == "" {
		tpl.ID = strings.TrimSpace(name)
	}
	if tpl.Version <= 0 {
		tpl.Version = 1
	}
	if strings.TrimSpace(tpl.Body) == "" {
		return Template{}, fmt.Errorf("prompt %s has empty body", tpl.ID)
	}
	var err error
	if tpl.body, err = template.New(tpl.ID).Option("missingkey=error").Parse(tpl.Body); err != nil {
		return Template{}, fmt.Errorf("parse prompt %s: %w", tpl.ID, err)
	}
	if strings.TrimSpace(tpl.System) != "" {
		if tpl.system, err = template.New(tpl.ID + ".system").Parse(tpl.System); err != nil {
			return Template{}, fmt.Errorf("parse prompt %s system: %w", tpl.ID, err)
		}
	}
	return tpl, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Templates: make(map[string]Template, len(src.Templates)),
	}
	for id, tpl := range src.Templates {
		dst.Templates[id] = tpl
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func readPromptFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read prompt config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parse prompt config failed: %w", err)
	}
	return cfg, nil
}
