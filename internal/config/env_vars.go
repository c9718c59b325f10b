package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appNameVar    = "SELFCARE_APP_NAME"
	tenantDirVar  = "SELFCARE_TENANT_DIR"
	storePathVar  = "SELFCARE_STORE_PATH"
	storePassVar  = "SELFCARE_STORE_PASSPHRASE"
	httpTimeout   = "SELFCARE_HTTP_TIMEOUT"
	logLevelVar   = "SELFCARE_LOG_LEVEL"
	defaultDirEnv = "HOME"
)

type EnvVars struct{}

var _ Config = mainConfig{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Selfcare")
}

func (EnvVars) GetTenantDir() string {
	return GetEnv(tenantDirVar, "./tenants.d")
}

func (EnvVars) GetStorePath() string {
	if path := os.Getenv(storePathVar); path != "" {
		return path
	}
	return filepath.Join(os.Getenv(defaultDirEnv), ".selfcare", "store.bin")
}

func (EnvVars) GetStorePassphrase() string {
	return GetEnv(storePassVar, "")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	raw := GetEnv(httpTimeout, "8s")
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 8 * time.Second
	}
	return d
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
