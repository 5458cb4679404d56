package rpc

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the SDK needs to talk to an Arrowhead local
// cloud: the identity of this system, the collaborator endpoints, the trust
// material paths, and the retry/timeout tunables.
type Config struct {
	TLS bool `yaml:"tls"`

	SystemName string `yaml:"system_name"`
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`

	KeystorePath     string `yaml:"keystore_path"`
	KeystorePassword string `yaml:"keystore_password"`
	TruststorePath   string `yaml:"truststore_path"`

	ServiceRegistryHost string `yaml:"serviceregistry_host"`
	ServiceRegistryPort int    `yaml:"serviceregistry_port"`
	OrchestratorHost    string `yaml:"orchestrator_host"`
	OrchestratorPort    int    `yaml:"orchestrator_port"`
	AuthorizationHost   string `yaml:"authorization_host"`
	AuthorizationPort   int    `yaml:"authorization_port"`

	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	OrchestrationTTL time.Duration `yaml:"orchestration_ttl"`
	TokenSkew        time.Duration `yaml:"token_skew"`

	LogLevel string `yaml:"log_level"`
}

// LoadConfig reads the ARROWHEAD_* environment, falling back to the same
// defaults the rest of the Arrowhead tooling uses.
func LoadConfig() *Config {
	return &Config{
		TLS: getenvBool("ARROWHEAD_TLS", true),

		SystemName: getenv("ARROWHEAD_SYSTEM_NAME", ""),
		Address:    getenv("ARROWHEAD_SYSTEM_ADDRESS", "localhost"),
		Port:       getenvInt("ARROWHEAD_SYSTEM_PORT", 8080),

		KeystorePath:     getenv("ARROWHEAD_KEYSTORE_PATH", ""),
		KeystorePassword: getenv("ARROWHEAD_KEYSTORE_PASSWORD", ""),
		TruststorePath:   getenv("ARROWHEAD_TRUSTSTORE", ""),

		ServiceRegistryHost: getenv("ARROWHEAD_SERVICEREGISTRY_HOST", "c1-serviceregistry"),
		ServiceRegistryPort: getenvInt("ARROWHEAD_SERVICEREGISTRY_PORT", 8443),
		OrchestratorHost:    getenv("ARROWHEAD_ORCHESTRATOR_HOST", "c1-orchestrator"),
		OrchestratorPort:    getenvInt("ARROWHEAD_ORCHESTRATOR_PORT", 8441),
		AuthorizationHost:   getenv("ARROWHEAD_AUTHORIZATION_HOST", "c1-authorization"),
		AuthorizationPort:   getenvInt("ARROWHEAD_AUTHORIZATION_PORT", 8445),

		RequestTimeout:   getenvDuration("ARROWHEAD_REQUEST_TIMEOUT", 10*time.Second),
		MaxAttempts:      getenvInt("ARROWHEAD_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getenvDuration("ARROWHEAD_RETRY_BASE_DELAY", 250*time.Millisecond),
		RetryMaxDelay:    getenvDuration("ARROWHEAD_RETRY_MAX_DELAY", 5*time.Second),
		OrchestrationTTL: getenvDuration("ARROWHEAD_ORCHESTRATION_TTL", 30*time.Second),
		TokenSkew:        getenvDuration("ARROWHEAD_TOKEN_SKEW", 5*time.Second),

		LogLevel: getenv("ARROWHEAD_LOG_LEVEL", "info"),
	}
}

// LoadConfigFile reads a YAML config file over the environment defaults.
// File values win over environment values only when set.
func LoadConfigFile(path string) (*Config, error) {
	cfg := LoadConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Scheme returns https when TLS is enabled, http otherwise.
func (c *Config) Scheme() string {
	if c.TLS {
		return "https"
	}
	return "http"
}

// Interface returns the Arrowhead interface name this configuration speaks.
func (c *Config) Interface() string {
	if c.TLS {
		return "HTTP-SECURE-JSON"
	}
	return "HTTP-INSECURE-JSON"
}

// ServiceRegistryURL builds a URL under the service registry's
// /serviceregistry base path.
func (c *Config) ServiceRegistryURL(path string) string {
	return fmt.Sprintf("%s://%s:%d/serviceregistry%s", c.Scheme(), c.ServiceRegistryHost, c.ServiceRegistryPort, path)
}

// OrchestratorURL builds a URL under the orchestrator's /orchestrator base
// path.
func (c *Config) OrchestratorURL(path string) string {
	return fmt.Sprintf("%s://%s:%d/orchestrator%s", c.Scheme(), c.OrchestratorHost, c.OrchestratorPort, path)
}

// AuthorizationURL builds a URL under the authorization system's
// /authorization base path.
func (c *Config) AuthorizationURL(path string) string {
	return fmt.Sprintf("%s://%s:%d/authorization%s", c.Scheme(), c.AuthorizationHost, c.AuthorizationPort, path)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
