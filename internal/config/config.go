package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kitchenlog/internal/domain"
)

// Config models kitchenlog.yml.
type Config struct {
	Sellers    []string `yaml:"sellers" json:"sellers"`
	Installers []string `yaml:"installers" json:"installers"`
	Incidents  struct {
		Causes   []domain.IncidentCause `yaml:"causes" json:"causes"`
		Statuses []domain.TaskStatus    `yaml:"statuses" json:"statuses"`
	} `yaml:"incidents" json:"incidents"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with kl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validateSet("sellers", c.Sellers); err != nil {
		return err
	}
	if err := validateSet("installers", c.Installers); err != nil {
		return err
	}
	causes := make([]string, len(c.Incidents.Causes))
	for i, v := range c.Incidents.Causes {
		causes[i] = string(v)
	}
	if err := validateSet("incidents.causes", causes); err != nil {
		return err
	}
	statuses := make([]string, len(c.Incidents.Statuses))
	for i, v := range c.Incidents.Statuses {
		statuses[i] = string(v)
	}
	if err := validateSet("incidents.statuses", statuses); err != nil {
		return err
	}
	var completed, active bool
	for _, s := range c.Incidents.Statuses {
		if s.IsCompleted() {
			completed = true
		} else {
			active = true
		}
	}
	if !completed {
		return fmt.Errorf("config.incidents.statuses must include %s", domain.TaskStatusCompleted)
	}
	if !active {
		return fmt.Errorf("config.incidents.statuses must include at least one active status")
	}
	return nil
}

func validateSet(name string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("config.%s is required", name)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			return fmt.Errorf("config.%s contains an empty value", name)
		}
		if _, ok := seen[v]; ok {
			return fmt.Errorf("config.%s contains duplicate value %q", name, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func (c *Config) HasSeller(v string) bool    { return contains(c.Sellers, v) }
func (c *Config) HasInstaller(v string) bool { return contains(c.Installers, v) }

func (c *Config) HasCause(v domain.IncidentCause) bool {
	for _, m := range c.Incidents.Causes {
		if m == v {
			return true
		}
	}
	return false
}

func (c *Config) HasStatus(v domain.TaskStatus) bool {
	for _, m := range c.Incidents.Statuses {
		if m == v {
			return true
		}
	}
	return false
}

// DefaultSeller is the first configured seller, used to preselect the registration form.
func (c *Config) DefaultSeller() string {
	if len(c.Sellers) == 0 {
		return ""
	}
	return c.Sellers[0]
}

// DefaultInstaller is the first configured installer.
func (c *Config) DefaultInstaller() string {
	if len(c.Installers) == 0 {
		return ""
	}
	return c.Installers[0]
}

func contains(set []string, v string) bool {
	for _, m := range set {
		if m == v {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "kitchenlog.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `sellers:
  - Lara
  - Maybeth
  - Raquel

installers:
  - Instalador A
  - Instalador B
  - Instalador C
  - Instalador D

incidents:
  causes:
    - MEASUREMENT_ERROR
    - DAMAGED_MATERIAL
    - MISSING_PARTS
    - INSTALLATION_DEFECT
    - DELIVERY_DELAY
    - OTHER
  statuses:
    - PENDING
    - IN_PROGRESS
    - COMPLETED
`
