package backend

import (
	"fmt"
	"strings"

	"studydash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (want one of %s)",
			appConfig.DataBackend, strings.Join(GetBackendTypeStrings(), ", "))
	}

	return Config{
		Type: backendType,

		APIBaseURL:  appConfig.APIBaseURL,
		APIToken:    appConfig.APIToken,
		APIPageSize: appConfig.APIPageSize,
		APITimeout:  appConfig.APITimeout,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		DataDirectory: appConfig.DataDirectory,
	}, nil
}

// Validate checks the fields the selected backend needs
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case APIBackend:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for api backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := []BackendType{APIBackend, SQLiteBackend, MemoryBackend}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// ValidateForWorker rejects backends whose data a separate worker process
// cannot see.
func (c Config) ValidateForWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Type.Shared() {
		return fmt.Errorf("%s backend is private to one process, the worker needs one of %s", c.Type, strings.Join(sharedTypeStrings(), ", "))
	}
	return nil
}

func sharedTypeStrings() []string {
	var out []string
	for _, t := range []BackendType{APIBackend, SQLiteBackend, MemoryBackend} {
		if t.Shared() {
			out = append(out, t.String())
		}
	}
	return out
}
