// Package config loads the sweep configuration from .eolsweep.yaml.
// A missing file means "use the defaults".
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"eolsweep/internal/core"
	"eolsweep/internal/logging"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".eolsweep.yaml"

// DefaultYAML is written by `eolsweep init`.
const DefaultYAML = `# eolsweep configuration
runtime: Node.js

# Versions slated for removal and the supported set that replaces them.
# The last install entry is used for single pinned setup steps.
versions:
  remove: [16, 18]
  install: [20, 22, 24]

schema:
  matrix_keys: [node, node_version]
  setup_action: actions/setup-node
  pinned_field: node-version

workflows:
  dir: .github/workflows
  exclude:
    - codeql.yml
    - codeql-analysis.yml
    - dependency-review.yml
    - scorecard.yml
    - stale.yml

manifest:
  enabled: true
  path: package.json
  field: node

pull_request:
  branch_prefix: eolsweep/
  labels: [dependencies]

git:
  commit: false
  timeout: 2m

# Repositories (directory names) to treat as archived.
archived: []

output_dir: .eolsweep/out
ledger:
  path: .eolsweep/ledger.jsonl
  key_dir: .eolsweep/keys

workers: 1
log:
  level: info
  format: text

server:
  addr: ":8080"
`

// SchemaConfig names the workflow fields that carry versions.
type SchemaConfig struct {
	MatrixKeys  []string `yaml:"matrix_keys"`
	SetupAction string   `yaml:"setup_action"`
	PinnedField string   `yaml:"pinned_field"`
}

// Schema converts the config into the core locator schema.
func (s SchemaConfig) Schema() core.Schema {
	return core.Schema{
		MatrixKeys:        append([]string(nil), s.MatrixKeys...),
		SetupActionMarker: s.SetupAction,
		PinnedField:       s.PinnedField,
	}
}

// WorkflowsConfig selects candidate files inside each repository.
type WorkflowsConfig struct {
	Dir     string   `yaml:"dir"`
	Exclude []string `yaml:"exclude"`
}

// ManifestConfig controls the package manifest engines patch.
type ManifestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Field   string `yaml:"field"`
}

// PullRequestConfig shapes the generated pull request.
type PullRequestConfig struct {
	BranchPrefix string   `yaml:"branch_prefix"`
	Labels       []string `yaml:"labels"`
}

// GitConfig controls whether changes are committed to a local branch.
type GitConfig struct {
	Commit  bool          `yaml:"commit"`
	Timeout time.Duration `yaml:"timeout"`
}

// LedgerConfig locates the audit ledger and its signing keys.
type LedgerConfig struct {
	Path   string `yaml:"path"`
	KeyDir string `yaml:"key_dir"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP transform service.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full sweep configuration.
type Config struct {
	Runtime     string            `yaml:"runtime"`
	Versions    core.VersionSet   `yaml:"versions"`
	Schema      SchemaConfig      `yaml:"schema"`
	Workflows   WorkflowsConfig   `yaml:"workflows"`
	Manifest    ManifestConfig    `yaml:"manifest"`
	PullRequest PullRequestConfig `yaml:"pull_request"`
	Git         GitConfig         `yaml:"git"`
	Archived    []string          `yaml:"archived"`
	OutputDir   string            `yaml:"output_dir"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Workers     int               `yaml:"workers"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`

	// Root is the directory holding the repositories to sweep. It is set
	// from the command line, never from the file.
	Root string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(DefaultYAML), &cfg); err != nil {
		panic(fmt.Sprintf("config: default yaml: %v", err))
	}
	return &cfg
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault creates path with DefaultYAML unless it already exists.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("config: ensure dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0o644); err != nil {
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, nil
}

func (c *Config) normalize() {
	c.Runtime = strings.TrimSpace(c.Runtime)
	c.Workflows.Dir = filepath.Clean(strings.TrimSpace(c.Workflows.Dir))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	for i, name := range c.Workflows.Exclude {
		c.Workflows.Exclude[i] = strings.ToLower(strings.TrimSpace(name))
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Versions.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if len(c.Schema.MatrixKeys) == 0 && c.Schema.SetupAction == "" {
		return errors.New("schema needs matrix_keys or setup_action")
	}
	if c.Schema.SetupAction != "" && c.Schema.PinnedField == "" {
		return errors.New("schema.pinned_field is required with setup_action")
	}
	if c.Workflows.Dir == "" || c.Workflows.Dir == "." {
		return errors.New("workflows.dir is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !contains(logging.Formats, c.Log.Format) {
		return fmt.Errorf("log.format must be one of %s", strings.Join(logging.Formats, ", "))
	}
	if c.Git.Timeout <= 0 {
		return fmt.Errorf("git.timeout must be positive, got %s", c.Git.Timeout)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// IsArchived reports whether the repository name is listed as archived.
func (c *Config) IsArchived(name string) bool {
	return contains(c.Archived, name)
}
