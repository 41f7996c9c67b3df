package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is the coordinator process configuration, loaded from the
// environment.
type Config struct {
	ServiceName string `validate:"required"`
	// UnitName identifies this coordinator instance within its
	// application, e.g. "mimir/0".
	UnitName string
	LogLevel string

	HTTPListenAddr    string `validate:"required"`
	MetricsListenAddr string `validate:"required"`

	// RolesConfigPath points at the YAML roles taxonomy for this
	// deployment.
	RolesConfigPath string `validate:"required"`

	// Leader marks this instance as the elected leader. The substrate
	// decides leadership; the coordinator only consumes the answer.
	Leader bool

	ExternalURL       string
	WorkerMetricsPort int `validate:"gte=1,lte=65535"`

	NginxConfigDir    string
	CertDir           string
	SupervisorDir     string
	NginxListenPort   int
	NginxExporterPort int

	WorkerRulesDir       string
	ProxyRulesDir        string
	ConsolidatedRulesDir string

	// TLS material paths for the file-based certificate provider.
	TLSServerCertPath string
	TLSPrivateKeyPath string
	TLSCACertPath     string
	TLSSecretLabel    string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:          getEnv("SERVICE_NAME", "coordinator"),
		UnitName:             getEnv("UNIT_NAME", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		HTTPListenAddr:       getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:    getEnv("METRICS_LISTEN_ADDR", ":9090"),
		RolesConfigPath:      getEnv("ROLES_CONFIG_PATH", "/etc/coordinator/roles.yaml"),
		Leader:               getEnvBool("LEADER", false),
		ExternalURL:          getEnv("EXTERNAL_URL", ""),
		WorkerMetricsPort:    getEnvInt("WORKER_METRICS_PORT", 8080),
		NginxConfigDir:       getEnv("NGINX_CONFIG_DIR", "/etc/nginx"),
		CertDir:              getEnv("CERT_DIR", "/etc/ssl/coordinator"),
		SupervisorDir:        getEnv("SUPERVISOR_DIR", "/etc/supervisor/conf.d"),
		NginxListenPort:      getEnvInt("NGINX_LISTEN_PORT", 8080),
		NginxExporterPort:    getEnvInt("NGINX_EXPORTER_PORT", 9113),
		WorkerRulesDir:       getEnv("WORKER_RULES_DIR", "/etc/coordinator/alert_rules/workers"),
		ProxyRulesDir:        getEnv("PROXY_RULES_DIR", "/etc/coordinator/alert_rules/nginx"),
		ConsolidatedRulesDir: getEnv("CONSOLIDATED_RULES_DIR", "/etc/coordinator/alert_rules/consolidated"),
		TLSServerCertPath:    getEnv("TLS_SERVER_CERT_PATH", ""),
		TLSPrivateKeyPath:    getEnv("TLS_PRIVATE_KEY_PATH", ""),
		TLSCACertPath:        getEnv("TLS_CA_CERT_PATH", ""),
		TLSSecretLabel:       getEnv("TLS_SECRET_LABEL", "coordinator-server-cert"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
