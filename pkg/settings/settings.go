// Package settings manages persistent user settings for the newtcli CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Settings holds persistent user preferences
type Settings struct {
	// ProfileDir holds site vendor profiles loaded after the built-ins
	ProfileDir string `json:"profile_dir,omitempty"`

	// DefaultPlatform selects the profile when -p is not specified
	DefaultPlatform string `json:"default_platform,omitempty"`

	// Username is the device login when -u is not specified
	Username string `json:"username,omitempty"`

	// Driver is the transport driver (ssh or scrapli)
	Driver string `json:"driver,omitempty"`

	// AuditLog is the JSON-lines audit file
	AuditLog string `json:"audit_log,omitempty"`

	// AuditRedis is a Redis address; when set, audit events go to Redis
	// instead of the file
	AuditRedis string `json:"audit_redis,omitempty"`

	// MetricsFile receives a Prometheus textfile after each run
	MetricsFile string `json:"metrics_file,omitempty"`

	// LogLevel and LogFormat set the diagnostics on stderr when the
	// --log-level and --log-format flags are not given
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultProfileDir is the profile directory when none is configured.
const DefaultProfileDir = "/etc/newtcli/profiles"

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(homeDir(), "settings.json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".newtcli"
	}
	return filepath.Join(home, ".newtcli")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields
// empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// GetProfileDir returns the profile directory (with fallback)
func (s *Settings) GetProfileDir() string {
	if s.ProfileDir != "" {
		return s.ProfileDir
	}
	return DefaultProfileDir
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return filepath.Join(homeDir(), "audit.log")
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

// fields maps setting names to their storage.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"profile_dir":      &s.ProfileDir,
		"default_platform": &s.DefaultPlatform,
		"username":         &s.Username,
		"driver":           &s.Driver,
		"audit_log":        &s.AuditLog,
		"audit_redis":      &s.AuditRedis,
		"metrics_file":     &s.MetricsFile,
		"log_level":        &s.LogLevel,
		"log_format":       &s.LogFormat,
	}
}

// Names returns the setting names, sorted.
func Names() []string {
	m := (&Settings{}).fields()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a setting by name.
func (s *Settings) Get(name string) (string, error) {
	p, ok := s.fields()[name]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s (valid: %v)", name, Names())
	}
	return *p, nil
}

// Set changes a setting by name. An empty value unsets it.
func (s *Settings) Set(name, value string) error {
	p, ok := s.fields()[name]
	if !ok {
		return fmt.Errorf("unknown setting: %s (valid: %v)", name, Names())
	}
	if name == "driver" && value != "" && value != "ssh" && value != "scrapli" {
		return fmt.Errorf("driver must be ssh or scrapli, got %q", value)
	}
	*p = value
	return nil
}
