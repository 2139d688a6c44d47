// Package config manages user preferences stored in ~/.config/efsim/config.toml.
// Config holds only local settings (where the simulator listens, which
// account and region it impersonates, where the CLI points its clients).
// Simulated resource state lives in the running server and is never saved.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Defaults applied when a key is missing from config.toml.
const (
	DefaultRegion            = "us-east-1"
	DefaultAccountID         = "123456789012"
	DefaultListenAddr        = "127.0.0.1:4566"
	DefaultMaxSecurityGroups = 5
)

// Config holds user preferences from ~/.config/efsim/config.toml.
// All fields use flat snake_case TOML keys.
type Config struct {
	Region            string `mapstructure:"region"              toml:"region"`
	AccountID         string `mapstructure:"account_id"          toml:"account_id"`
	ListenAddr        string `mapstructure:"listen_addr"         toml:"listen_addr"`
	Endpoint          string `mapstructure:"endpoint"            toml:"endpoint"`
	LogDir            string `mapstructure:"log_dir"             toml:"log_dir"`
	MaxSecurityGroups int    `mapstructure:"max_security_groups" toml:"max_security_groups"`
}

// validator is a function that validates a string value for a config key.
type validator func(value string) error

// validators maps config keys to their validation functions.
var validators = map[string]validator{
	"region":              validateRegion,
	"account_id":          validateAccountID,
	"listen_addr":         validateListenAddr,
	"endpoint":            validateEndpoint,
	"log_dir":             validateLogDir,
	"max_security_groups": validateMaxSecurityGroups,
}

// ValidKeys returns the sorted list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidKey reports whether key names a config setting.
func IsValidKey(key string) bool {
	_, ok := validators[key]
	return ok
}

// DefaultConfigDir returns the default config directory path (~/.config/efsim).
// If EFSIM_CONFIG_DIR is set, that value is used instead.
func DefaultConfigDir() string {
	if dir := os.Getenv("EFSIM_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "efsim")
	}
	return filepath.Join(home, ".config", "efsim")
}

// Load reads the config file from configDir/config.toml and returns a Config
// with defaults applied for any missing keys. If the file does not exist,
// all defaults are returned without error.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("region", DefaultRegion)
	v.SetDefault("account_id", DefaultAccountID)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("endpoint", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("max_security_groups", DefaultMaxSecurityGroups)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to configDir/config.toml, creating the directory
// if it does not exist.
func Save(cfg *Config, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.Set("region", cfg.Region)
	v.Set("account_id", cfg.AccountID)
	v.Set("listen_addr", cfg.ListenAddr)
	v.Set("endpoint", cfg.Endpoint)
	v.Set("log_dir", cfg.LogDir)
	v.Set("max_security_groups", cfg.MaxSecurityGroups)

	path := filepath.Join(configDir, "config.toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// EndpointURL returns the URL CLI clients should call: the endpoint key when
// set, otherwise the local listen address.
func (c *Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "http://" + c.ListenAddr
}

// ResolvedLogDir returns log_dir, or configDir/logs when it is unset.
func (c *Config) ResolvedLogDir(configDir string) string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(configDir, "logs")
}

// Get returns the string form of key's current value.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "region":
		return c.Region, nil
	case "account_id":
		return c.AccountID, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "endpoint":
		return c.Endpoint, nil
	case "log_dir":
		return c.LogDir, nil
	case "max_security_groups":
		return strconv.Itoa(c.MaxSecurityGroups), nil
	default:
		return "", unknownKeyError(key)
	}
}

// Set validates and applies a single key-value pair to the config.
// Returns an error if the key is unknown or the value fails validation.
func (c *Config) Set(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return unknownKeyError(key)
	}

	if err := validate(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	switch key {
	case "region":
		c.Region = value
	case "account_id":
		c.AccountID = value
	case "listen_addr":
		c.ListenAddr = value
	case "endpoint":
		c.Endpoint = value
	case "log_dir":
		c.LogDir = value
	case "max_security_groups":
		n, _ := strconv.Atoi(value) // already validated
		c.MaxSecurityGroups = n
	}

	return nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys(), ", "))
}

// regionPattern matches valid AWS region formats like us-west-2, eu-central-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)

func validateRegion(value string) error {
	if !regionPattern.MatchString(value) {
		return fmt.Errorf("%q does not match AWS region format (e.g., us-west-2)", value)
	}
	return nil
}

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

func validateAccountID(value string) error {
	if !accountIDPattern.MatchString(value) {
		return fmt.Errorf("%q is not a 12-digit AWS account id", value)
	}
	return nil
}

func validateListenAddr(value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("%q is not a host:port address", value)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%q has an invalid port", value)
	}
	return nil
}

func validateEndpoint(value string) error {
	if value == "" {
		return nil // empty falls back to listen_addr
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", value)
	}
	return nil
}

func validateLogDir(value string) error {
	if value != "" && !filepath.IsAbs(value) {
		return fmt.Errorf("%q must be an absolute path", value)
	}
	return nil
}

func validateMaxSecurityGroups(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1 (got %d)", n)
	}
	if n > DefaultMaxSecurityGroups {
		return fmt.Errorf("must be <= %d (got %d)", DefaultMaxSecurityGroups, n)
	}
	return nil
}
