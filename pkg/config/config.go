package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cadogan/recmap/pkg/crypt"
)

const (
	DefaultConfigPath = "/etc/recmap/config"
	ConfigFileName    = "recmap.yml"
)

// ValidLogLevels is the list of accepted log_level values
var ValidLogLevels = []string{"silent", "info", "debug"}

// Config holds all recmap configuration settings
type Config struct {
	// Connections maps connection names to database URLs
	Connections map[string]string `yaml:"connections" json:"connections"`

	// DefaultConnection names the connection used when a type declares none
	DefaultConnection string `yaml:"default_connection" json:"default_connection"`

	// EncryptionKey is the Base64-encoded 256-bit data key for encrypted fields
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`

	// LogLevel controls SQL logging (silent, info or debug)
	LogLevel string `yaml:"log_level" json:"log_level"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *Config {
	return &Config{
		Connections:       map[string]string{},
		DefaultConnection: "default",
		EncryptionKey:     "",
		LogLevel:          "silent",
		sources:           make(map[string]string),
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	config := newDefault()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("RECMAP_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{"connections", "default_connection", "encryption_key", "log_level"}
}

func (c *Config) applyFileConfig(file *Config) {
	if len(file.Connections) > 0 {
		c.Connections = file.Connections
		c.sources["connections"] = "file"
	}
	if file.DefaultConnection != "" {
		c.DefaultConnection = file.DefaultConnection
		c.sources["default_connection"] = "file"
	}
	if file.EncryptionKey != "" {
		c.EncryptionKey = file.EncryptionKey
		c.sources["encryption_key"] = "file"
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
		c.sources["log_level"] = "file"
	}
}

func (c *Config) applyEnvConfig() {
	if val := os.Getenv("RECMAP_DATABASE_URL"); val != "" {
		c.Connections[c.DefaultConnection] = val
		c.sources["connections"] = "environment"
	}
	if val := os.Getenv("RECMAP_DEFAULT_CONNECTION"); val != "" {
		c.DefaultConnection = val
		c.sources["default_connection"] = "environment"
	}
	if val := os.Getenv("RECMAP_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
		c.sources["encryption_key"] = "environment"
	}
	if val := os.Getenv("RECMAP_LOG_LEVEL"); val != "" {
		c.LogLevel = val
		c.sources["log_level"] = "environment"
	}
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// ConnectionURL returns the URL registered under name. The empty name
// means the default connection.
func (c *Config) ConnectionURL(name string) (string, bool) {
	if name == "" {
		name = c.DefaultConnection
	}
	url, ok := c.Connections[name]
	return url, ok
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.EncryptionKey != "" {
		if _, err := crypt.ParseKey(c.EncryptionKey); err != nil {
			return fmt.Errorf("invalid encryption_key: %w", err)
		}
	}

	if c.LogLevel != "" {
		valid := false
		for _, level := range ValidLogLevels {
			if c.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid log_level: %s", c.LogLevel)
		}
	}

	for name, url := range c.Connections {
		if strings.TrimSpace(url) == "" {
			return fmt.Errorf("connection %q has an empty URL", name)
		}
	}

	if len(c.Connections) > 0 {
		if _, ok := c.Connections[c.DefaultConnection]; !ok {
			return fmt.Errorf("default_connection %q is not a configured connection", c.DefaultConnection)
		}
	}

	return nil
}

// Attributes returns all configuration attributes with their values
// and sources. The encryption key value is redacted.
func (c *Config) Attributes() []Attribute {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	key := ""
	if c.EncryptionKey != "" {
		key = "(redacted)"
	}

	return []Attribute{
		{Name: "connections", Value: strings.Join(names, ","), Source: c.Source("connections")},
		{Name: "default_connection", Value: c.DefaultConnection, Source: c.Source("default_connection")},
		{Name: "encryption_key", Value: key, Source: c.Source("encryption_key")},
		{Name: "log_level", Value: c.LogLevel, Source: c.Source("log_level")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-25s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-25s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-25s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
