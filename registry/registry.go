// Package registry holds the suites an application has registered for
// execution, and the optional YAML run manifest that selects among them and
// overrides engine defaults. The tree-building DSL lives with the caller;
// the registry only stores the finished trees, type-erased.
package registry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/grovekit/grove/runner"
	"github.com/grovekit/grove/types"
)

// Suite is a named suite tree with its context type erased, ready to be
// executed by a Runner.
type Suite interface {
	Name() string
	Tags() []string
	TestCount() int
	Execute(ctx context.Context, r *runner.Runner) ([]types.TestResult, error)
}

type suite[C any] struct {
	name string
	tags []string
	root types.Root[C]
}

// NewSuite wraps a typed suite tree in the erased Suite interface.
func NewSuite[C any](name string, tags []string, root types.Root[C]) Suite {
	return &suite[C]{name: name, tags: tags, root: root}
}

func (s *suite[C]) Name() string   { return s.name }
func (s *suite[C]) Tags() []string { return s.tags }

func (s *suite[C]) TestCount() int {
	return types.CountTests[C](s.root.Tree)
}

func (s *suite[C]) Execute(ctx context.Context, r *runner.Runner) ([]types.TestResult, error) {
	return runner.Run(ctx, r, s.root)
}

// Duration wraps time.Duration with "30s"-style YAML parsing.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Manifest selects which registered suites a run executes and optionally
// overrides engine defaults. An empty suite list selects everything.
type Manifest struct {
	MaxConcurrency int             `yaml:"max_concurrency,omitempty"`
	DefaultTimeout Duration        `yaml:"default_timeout,omitempty"`
	Suites         []SuiteSelector `yaml:"suites,omitempty"`
}

// SuiteSelector matches a suite by exact name, or by any overlapping tag
// when no name is given.
type SuiteSelector struct {
	Name string   `yaml:"name,omitempty"`
	Tags []string `yaml:"tags,omitempty"`
}

func (sel SuiteSelector) matches(s Suite) bool {
	if sel.Name != "" {
		return sel.Name == s.Name()
	}
	for _, want := range sel.Tags {
		for _, have := range s.Tags() {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Config contains registry configuration.
type Config struct {
	Log          log.Logger
	ManifestFile string // optional; empty means run everything registered
}

// Registry manages the registered suites and their run manifest.
type Registry struct {
	config   Config
	manifest *Manifest
	mu       sync.RWMutex
	suites   []Suite
	byName   map[string]struct{}
}

// NewRegistry creates a new registry instance, loading the manifest when one
// is configured.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
		byName: make(map[string]struct{}),
	}

	if cfg.ManifestFile != "" {
		manifest, err := loadManifest(cfg.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		r.manifest = manifest
		cfg.Log.Debug("Run manifest loaded", "file", cfg.ManifestFile, "selectors", len(manifest.Suites))
	}

	return r, nil
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &manifest, nil
}

// Register adds a suite. Suite names are unique within a registry.
func (r *Registry) Register(s Suite) error {
	if s == nil {
		return fmt.Errorf("suite is required")
	}
	if s.Name() == "" {
		return fmt.Errorf("suite name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name()]; exists {
		return fmt.Errorf("suite %q already registered", s.Name())
	}
	r.byName[s.Name()] = struct{}{}
	r.suites = append(r.suites, s)

	r.config.Log.Debug("Suite registered", "suite", s.Name(), "tests", s.TestCount())
	return nil
}

// Suites returns the suites selected by the manifest, in registration
// order. Without a manifest (or with an empty selector list) every
// registered suite is selected.
func (r *Registry) Suites() []Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.manifest == nil || len(r.manifest.Suites) == 0 {
		return append([]Suite{}, r.suites...)
	}

	var selected []Suite
	for _, s := range r.suites {
		for _, sel := range r.manifest.Suites {
			if sel.matches(s) {
				selected = append(selected, s)
				break
			}
		}
	}
	return selected
}

// Manifest returns the loaded manifest, or nil when none was configured.
func (r *Registry) Manifest() *Manifest {
	return r.manifest
}
