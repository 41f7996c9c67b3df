package proxy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

type programData struct {
	Name    string
	Command string
}

var programTmpl = template.Must(template.New("program").Parse(`[program:{{.Name}}]
command={{.Command}}
autostart=true
autorestart=true
startretries=5
stopsignal=TERM
stopwaitsecs=10
stdout_logfile=/var/log/supervisor/{{.Name}}.log
stderr_logfile=/var/log/supervisor/{{.Name}}-error.log
`))

// EnsureLayer writes the declarative process configuration for nginx and its
// prometheus-exporter sidecar. It runs on every reconciliation, coherent or
// not, so the local workload stays runnable in a degraded cluster.
func (m *Manager) EnsureLayer() error {
	programs := []programData{
		{
			Name:    "nginx",
			Command: fmt.Sprintf("nginx -c %s -g 'daemon off;'", m.configPath()),
		},
		{
			Name: "nginx-prometheus-exporter",
			Command: fmt.Sprintf(
				"nginx-prometheus-exporter --nginx.scrape-uri=http://127.0.0.1:%d/status --web.listen-address=:%d",
				m.cfg.ListenPort, m.cfg.ExporterPort,
			),
		},
	}

	if err := os.MkdirAll(m.cfg.SupervisorDir, 0o755); err != nil {
		return fmt.Errorf("create supervisor dir: %w", err)
	}
	for _, p := range programs {
		var b bytes.Buffer
		if err := programTmpl.Execute(&b, p); err != nil {
			return fmt.Errorf("render program %s: %w", p.Name, err)
		}
		path := filepath.Join(m.cfg.SupervisorDir, p.Name+".conf")
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, b.Bytes()) {
			continue
		}
		if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write program %s: %w", p.Name, err)
		}
		m.logger.Info().Str("program", p.Name).Msg("supervisor program config updated")
	}
	return nil
}
