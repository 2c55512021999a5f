package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ClientAccessKey          string `yaml:"CLIENT_ACCESS_KEY"`
	ClientSecretAccessKey    string `yaml:"CLIENT_SECRET_ACCESS_KEY"`
	RPCHost                  string `yaml:"RPC_HOST" default:"localhost"`
	RPCDatalayerPort         int    `yaml:"RPC_DATALAYER_PORT" default:"8562"`
	Port                     int    `yaml:"PORT" default:"41410"`
	UploadURL                string `yaml:"UPLOAD_URL" default:"https://api.datalayer.storage/file/v1/upload"`
	RootPath                 string `yaml:"ROOT_PATH"`
	Concurrency              int    `yaml:"CONCURRENCY" default:"1"`
	ReconcileIntervalMinutes int    `yaml:"RECONCILE_INTERVAL_MINUTES"`
}

// DefaultConfigFilePath is where a config file is created on first run when
// the -configfile flag is not given.
func DefaultConfigFilePath() string {
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return ""
	}
	return filepath.Join(homeDir, ".dlaas", "config.yaml")
}

func defaultAppConfig() AppConfig {
	var appConfig AppConfig
	// Load with no file sources only applies the default tags.
	if defaultsErr := configor.Load(&appConfig); defaultsErr != nil {
		log.Warn(fmt.Sprintf("Error building default config: %s", defaultsErr))
	}
	appConfig.resolveRootPath()
	return appConfig
}

// LoadConfig reads the YAML config at configFilePath, creating it with
// defaults when missing. Any read or write problem degrades to the built-in
// defaults rather than failing startup.
func LoadConfig(configFilePath string) AppConfig {
	if configFilePath == "" {
		return defaultAppConfig()
	}

	if _, statErr := os.Stat(configFilePath); os.IsNotExist(statErr) {
		appConfig := defaultAppConfig()
		if writeErr := writeConfigFile(configFilePath, appConfig); writeErr != nil {
			log.Warn(fmt.Sprintf("Unable to create config file at %s: %s", configFilePath, writeErr))
		}
		return appConfig
	}

	var appConfig AppConfig
	if loadErr := configor.Load(&appConfig, configFilePath); loadErr != nil {
		log.Warn(fmt.Sprintf("Config file not found at %s: %s", configFilePath, loadErr))
		return defaultAppConfig()
	}
	appConfig.resolveRootPath()

	return appConfig
}

func writeConfigFile(configFilePath string, appConfig AppConfig) error {
	if mkdirErr := os.MkdirAll(filepath.Dir(configFilePath), 0755); mkdirErr != nil {
		return mkdirErr
	}
	contents, marshalErr := yaml.Marshal(appConfig)
	if marshalErr != nil {
		return marshalErr
	}
	return os.WriteFile(configFilePath, contents, 0644)
}

func (c *AppConfig) resolveRootPath() {
	if c.RootPath != "" {
		return
	}
	if envRoot := os.Getenv("CHIA_ROOT"); envRoot != "" {
		c.RootPath = envRoot
		return
	}
	homeDir, homeErr := os.UserHomeDir()
	if homeErr == nil {
		c.RootPath = filepath.Join(homeDir, ".chia", "mainnet")
	}
}

func (c AppConfig) HasCredentials() bool {
	return c.ClientAccessKey != "" && c.ClientSecretAccessKey != ""
}

// SourceFilePath resolves a filename from an upload request against the
// fixed on-disk tree the datalayer writes its server files into.
func (c AppConfig) SourceFilePath(filename string) string {
	return filepath.Join(c.RootPath, "data_layer", "db", "server_files_location_mainnet", filename)
}

func (c AppConfig) CertFilePath() string {
	return filepath.Join(c.RootPath, "config", "ssl", "data_layer", "private_data_layer.crt")
}

func (c AppConfig) KeyFilePath() string {
	return filepath.Join(c.RootPath, "config", "ssl", "data_layer", "private_data_layer.key")
}

func (c AppConfig) ConfigStringArray() []string {
	configStrArr := make([]string, 0)
	configStrArr = append(configStrArr, fmt.Sprintf("  - UploadURL: %s", c.UploadURL))
	configStrArr = append(configStrArr, fmt.Sprintf("  - RPCHost: %s", c.RPCHost))
	configStrArr = append(configStrArr, fmt.Sprintf("  - RPCDatalayerPort: %d", c.RPCDatalayerPort))
	configStrArr = append(configStrArr, fmt.Sprintf("  - RootPath: %s", c.RootPath))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Concurrent Uploads: %d", c.Concurrency))

	if c.ReconcileIntervalMinutes > 0 {
		configStrArr = append(configStrArr, fmt.Sprintf("  - ReconcileIntervalMinutes: %d", c.ReconcileIntervalMinutes))
	}

	return configStrArr
}
