package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models caseline.yml.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Workflow struct {
		// FollowUpDays is the fallback due-date offset for the
		// assignee follow-up when a case has no court return date.
		FollowUpDays int `yaml:"follow_up_days"`
	} `yaml:"workflow"`
	Divisions map[string]Division `yaml:"divisions"`
	Import    ImportConfig        `yaml:"import"`
	Webhooks  []WebhookConfig     `yaml:"webhooks"`
}

type Division struct {
	Description string `yaml:"description"`
}

// ImportConfig names the register columns the bulk importer probes, in
// order. The history column falls back to pattern detection when the
// named columns are absent.
type ImportConfig struct {
	CaseNumberColumns []string `yaml:"case_number_columns"`
	TitleColumns      []string `yaml:"title_columns"`
	HistoryColumns    []string `yaml:"history_columns"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run 'cl config init' to create one", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
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
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	if c.Workflow.FollowUpDays < 0 {
		return fmt.Errorf("config.workflow.follow_up_days must not be negative")
	}
	for id, div := range c.Divisions {
		if id == "" {
			return fmt.Errorf("config.divisions contains empty division id")
		}
		_ = div
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// FollowUpDays returns the configured fallback, defaulting to 14.
func (c *Config) FollowUpDays() int {
	if c == nil || c.Workflow.FollowUpDays == 0 {
		return 14
	}
	return c.Workflow.FollowUpDays
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "caseline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
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

const defaultTemplate = `service:
  name: caseline

workflow:
  follow_up_days: 14

divisions:
  lands:
    description: "Division of Lands and Physical Planning"
  surveys:
    description: "Division of Surveys"
  legal:
    description: "Legal Services Division"

import:
  case_number_columns: [case_number, case_no, file_reference]
  title_columns: [title, matter, description]
  history_columns: [assignment_history, officer_history, remarks]

webhooks: []
`
