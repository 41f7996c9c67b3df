// Package proxy manages the coordinator's local nginx reverse proxy and its
// prometheus-exporter sidecar: rendered configuration, TLS material on disk,
// and the supervisor program definitions that keep both processes running.
package proxy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/model"
)

// Config holds the filesystem layout and ports for the managed proxy.
type Config struct {
	ConfigDir     string
	CertDir       string
	SupervisorDir string
	ListenPort    int
	TLSPort       int
	ExporterPort  int
}

// Manager renders and installs the proxy's configuration.
type Manager struct {
	logger zerolog.Logger
	cfg    Config
}

// NewManager creates a proxy manager.
func NewManager(logger zerolog.Logger, cfg Config) *Manager {
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8080
	}
	if cfg.TLSPort == 0 {
		cfg.TLSPort = 8443
	}
	if cfg.ExporterPort == 0 {
		cfg.ExporterPort = 9113
	}
	return &Manager{
		logger: logger.With().Str("component", "proxy").Logger(),
		cfg:    cfg,
	}
}

// ExporterPort is the port the prometheus-exporter sidecar listens on.
func (m *Manager) ExporterPort() int {
	return m.cfg.ExporterPort
}

func (m *Manager) configPath() string {
	return filepath.Join(m.cfg.ConfigDir, "nginx.conf")
}

func (m *Manager) certPaths() (cert, key, ca string) {
	return filepath.Join(m.cfg.CertDir, "server.pem"),
		filepath.Join(m.cfg.CertDir, "server.key"),
		filepath.Join(m.cfg.CertDir, "ca.pem")
}

// WriteConfig installs a rendered nginx configuration. The write is skipped
// when the on-disk config is already identical.
func (m *Manager) WriteConfig(config string) error {
	if err := os.MkdirAll(m.cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := m.configPath()
	if current, err := os.ReadFile(path); err == nil && string(current) == config {
		return nil
	}
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		return fmt.Errorf("write nginx config: %w", err)
	}
	m.logger.Info().Str("path", path).Msg("nginx config updated")
	return nil
}

// ConfigureTLS installs certificate, key and CA on disk for nginx to serve.
func (m *Manager) ConfigureTLS(mat *model.TLSMaterial) error {
	if err := os.MkdirAll(m.cfg.CertDir, 0o700); err != nil {
		return fmt.Errorf("create cert dir: %w", err)
	}
	cert, key, ca := m.certPaths()
	if err := os.WriteFile(cert, []byte(mat.ServerCert), 0o644); err != nil {
		return fmt.Errorf("write server cert: %w", err)
	}
	if err := os.WriteFile(key, []byte(mat.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(ca, []byte(mat.CACert), 0o644); err != nil {
		return fmt.Errorf("write ca cert: %w", err)
	}
	m.logger.Info().Str("dir", m.cfg.CertDir).Msg("TLS material installed")
	return nil
}

// DisableTLS removes any installed TLS material, dropping nginx back to
// plain http on the next config render.
func (m *Manager) DisableTLS() error {
	cert, key, ca := m.certPaths()
	for _, path := range []string{cert, key, ca} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// TLSConfigured reports whether all three TLS files are installed.
func (m *Manager) TLSConfigured() bool {
	cert, key, ca := m.certPaths()
	for _, path := range []string{cert, key, ca} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// Upstream is one role-addressed worker pool behind the proxy.
type Upstream struct {
	Role      string
	Addresses []string
	Port      int
}

type configData struct {
	ListenPort int
	TLSPort    int
	TLS        bool
	CertDir    string
	ServerName string
	Upstreams  []Upstream
}

var configTmpl = template.Must(template.New("nginx").Parse(`worker_processes 4;

events {
    worker_connections 1024;
}

http {
    client_max_body_size 100M;
    proxy_read_timeout 300;

{{- range .Upstreams}}
    upstream {{.Role}} {
{{- $port := .Port}}
{{- range .Addresses}}
        server {{.}}:{{$port}};
{{- end}}
    }
{{- end}}

    server {
{{- if .TLS}}
        listen {{.TLSPort}} ssl;
        ssl_certificate {{.CertDir}}/server.pem;
        ssl_certificate_key {{.CertDir}}/server.key;
        ssl_trusted_certificate {{.CertDir}}/ca.pem;
{{- else}}
        listen {{.ListenPort}};
{{- end}}
        server_name {{.ServerName}};

        location /status {
            stub_status;
        }
{{- range .Upstreams}}
        location /{{.Role}}/ {
            proxy_pass http://{{.Role}}/;
        }
{{- end}}
    }
}
`))

// RenderConfig renders the default reverse-proxy configuration for the given
// upstreams. Deployments with their own routing layout supply their own
// generator instead.
func (m *Manager) RenderConfig(serverName string, tls bool, upstreams []Upstream) (string, error) {
	data := configData{
		ListenPort: m.cfg.ListenPort,
		TLSPort:    m.cfg.TLSPort,
		TLS:        tls,
		CertDir:    m.cfg.CertDir,
		ServerName: serverName,
		Upstreams:  upstreams,
	}
	var b bytes.Buffer
	if err := configTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render nginx config: %w", err)
	}
	return b.String(), nil
}

// UpstreamsFromTopology groups worker addresses by covered role into
// proxy upstreams. Roles with no addressed workers are omitted.
func UpstreamsFromTopology(topology []model.TopologyEntry, roles *model.RolesConfig, rolesByApp map[string][]string, workerPort int) []Upstream {
	byRole := make(map[string][]string)
	for _, entry := range topology {
		for _, role := range roles.ExpandRoles(rolesByApp[entry.Application]) {
			byRole[role] = append(byRole[role], entry.Address)
		}
	}
	var upstreams []Upstream
	for _, role := range roles.Roles {
		if addrs := byRole[role]; len(addrs) > 0 {
			upstreams = append(upstreams, Upstream{Role: role, Addresses: addrs, Port: workerPort})
		}
	}
	return upstreams
}
