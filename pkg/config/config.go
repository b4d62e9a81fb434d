package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/msl-wiretap"
	ConfigFileName    = "wiretap.yml"

	DefaultMaxMessageSize = 1 << 20
)

// ValidFormats lists the tree encodings tokens may arrive in.
var ValidFormats = []string{"json", "cbor"}

var ErrNoDataKey = errors.New("WIRETAP_DATA_KEY environment variable is required")

// WiretapConfig holds all wiretap configuration settings
type WiretapConfig struct {
	// Format is the tree encoding of captured messages and tokens
	Format string `yaml:"format" json:"format"`

	// RequireVerified fails inspections that contain unverified tokens
	RequireVerified bool `yaml:"require_verified" json:"require_verified"`

	// MaxMessageSize bounds the size of a captured message in bytes
	MaxMessageSize int `yaml:"max_message_size" json:"max_message_size"`

	// KeyID is the entity whose crypto context decodes tokens
	KeyID string `yaml:"key_id" json:"key_id"`

	// KeysFile is a YAML keys file used instead of the database keystore
	KeysFile string `yaml:"keys_file" json:"keys_file"`

	// AuditEnabled enables audit events
	AuditEnabled bool `yaml:"audit_enabled" json:"audit_enabled"`

	// APITokenSecret enables HS256 bearer authentication of the HTTP API
	APITokenSecret string `yaml:"api_token_secret" json:"-"`

	// APITokenIssuer is the required issuer claim of API bearer tokens
	APITokenIssuer string `yaml:"api_token_issuer" json:"api_token_issuer"`

	// sources tracks where each value came from
	sources map[string]string

	configFilePath string
}

// fileConfig distinguishes unset values from zero values in the file.
type fileConfig struct {
	Format          *string `yaml:"format"`
	RequireVerified *bool   `yaml:"require_verified"`
	MaxMessageSize  *int    `yaml:"max_message_size"`
	KeyID           *string `yaml:"key_id"`
	KeysFile        *string `yaml:"keys_file"`
	AuditEnabled    *bool   `yaml:"audit_enabled"`
	APITokenSecret  *string `yaml:"api_token_secret"`
	APITokenIssuer  *string `yaml:"api_token_issuer"`
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

var (
	globalConfig *WiretapConfig
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *WiretapConfig {
	configMu.RLock()
	if globalConfig != nil {
		defer configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			cfg = newDefault()
		}
		globalConfig = cfg
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

func newDefault() *WiretapConfig {
	c := &WiretapConfig{
		Format:         "json",
		MaxMessageSize: DefaultMaxMessageSize,
		AuditEnabled:   true,
		sources:        make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = "default"
	}
	return c
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*WiretapConfig, error) {
	config := newDefault()

	configPath := os.Getenv("WIRETAP_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&file)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func attributeNames() []string {
	return []string{
		"format", "require_verified", "max_message_size", "key_id",
		"keys_file", "audit_enabled", "api_token_secret", "api_token_issuer",
	}
}

func (c *WiretapConfig) applyFileConfig(file *fileConfig) {
	setString := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			c.sources[name] = "file"
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil {
			*dst = *v
			c.sources[name] = "file"
		}
	}

	setString("format", &c.Format, file.Format)
	setBool("require_verified", &c.RequireVerified, file.RequireVerified)
	if file.MaxMessageSize != nil {
		c.MaxMessageSize = *file.MaxMessageSize
		c.sources["max_message_size"] = "file"
	}
	setString("key_id", &c.KeyID, file.KeyID)
	setString("keys_file", &c.KeysFile, file.KeysFile)
	setBool("audit_enabled", &c.AuditEnabled, file.AuditEnabled)
	setString("api_token_secret", &c.APITokenSecret, file.APITokenSecret)
	setString("api_token_issuer", &c.APITokenIssuer, file.APITokenIssuer)
}

func (c *WiretapConfig) applyEnvConfig() error {
	stringAttrs := map[string]*string{
		"format":           &c.Format,
		"key_id":           &c.KeyID,
		"keys_file":        &c.KeysFile,
		"api_token_secret": &c.APITokenSecret,
		"api_token_issuer": &c.APITokenIssuer,
	}
	for name, dst := range stringAttrs {
		if val := os.Getenv(envName(name)); val != "" {
			*dst = val
			c.sources[name] = "environment"
		}
	}

	boolAttrs := map[string]*bool{
		"require_verified": &c.RequireVerified,
		"audit_enabled":    &c.AuditEnabled,
	}
	for name, dst := range boolAttrs {
		if val := os.Getenv(envName(name)); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", envName(name), err)
			}
			*dst = b
			c.sources[name] = "environment"
		}
	}

	if val := os.Getenv(envName("max_message_size")); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envName("max_message_size"), err)
		}
		c.MaxMessageSize = i
		c.sources["max_message_size"] = "environment"
	}
	return nil
}

func envName(attribute string) string {
	return "WIRETAP_" + strings.ToUpper(attribute)
}

// ConfigFilePath returns the path to the config file
func (c *WiretapConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *WiretapConfig) Source(name string) string {
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// Validate validates the configuration
func (c *WiretapConfig) Validate() error {
	valid := false
	for _, f := range ValidFormats {
		valid = valid || f == c.Format
	}
	if !valid {
		return fmt.Errorf("invalid format: %s (expected one of %s)", c.Format, strings.Join(ValidFormats, ", "))
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max_message_size: %d", c.MaxMessageSize)
	}

	if c.APITokenIssuer != "" && c.APITokenSecret == "" {
		return errors.New("api_token_issuer requires api_token_secret")
	}
	return nil
}

// Attributes returns all configuration attributes with their values and
// sources. Secrets are redacted.
func (c *WiretapConfig) Attributes() []Attribute {
	secret := ""
	if c.APITokenSecret != "" {
		secret = "(redacted)"
	}

	return []Attribute{
		{Name: "format", Value: c.Format, Source: c.Source("format")},
		{Name: "require_verified", Value: strconv.FormatBool(c.RequireVerified), Source: c.Source("require_verified")},
		{Name: "max_message_size", Value: strconv.Itoa(c.MaxMessageSize), Source: c.Source("max_message_size")},
		{Name: "key_id", Value: c.KeyID, Source: c.Source("key_id")},
		{Name: "keys_file", Value: c.KeysFile, Source: c.Source("keys_file")},
		{Name: "audit_enabled", Value: strconv.FormatBool(c.AuditEnabled), Source: c.Source("audit_enabled")},
		{Name: "api_token_secret", Value: secret, Source: c.Source("api_token_secret")},
		{Name: "api_token_issuer", Value: c.APITokenIssuer, Source: c.Source("api_token_issuer")},
	}
}

// FormatText returns a text representation of the configuration
func (c *WiretapConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-20s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-20s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-20s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *WiretapConfig) FormatJSON() (string, error) {
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

// DataKey decodes the base64 data key protecting the keystore.
func DataKey() ([]byte, error) {
	val := os.Getenv("WIRETAP_DATA_KEY")
	if val == "" {
		return nil, ErrNoDataKey
	}
	key, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("WIRETAP_DATA_KEY is not base64: %w", err)
	}
	return key, nil
}
