package config

import "time"

// Config is the process-level configuration surface. Tenant descriptors
// live in YAML files under GetTenantDir; everything here comes from the
// environment.
type Config interface {
	GetAppName() string
	GetTenantDir() string
	GetStorePath() string
	GetStorePassphrase() string
	GetHTTPTimeout() time.Duration
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
