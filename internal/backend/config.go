package backend

import (
	"errors"
	"fmt"

	"budget/internal/config"
)

// FromAppConfig converts the application config to a backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{Type: BackendType(appConfig.DataBackend)}
	switch cfg.Type {
	case PostgresBackend:
		cfg.PostgresDSN = appConfig.PostgresDSN()
	case SQLiteBackend:
		cfg.SQLiteDBPath = appConfig.SQLiteDBPath
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q (want one of %v)", c.Type, GetBackendTypeStrings())
	}
	switch c.Type {
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return errors.New("postgres DSN is required for postgres backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	}
	return nil
}

func GetBackendTypes() []BackendType {
	return []BackendType{PostgresBackend, SQLiteBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
