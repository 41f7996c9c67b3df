package alerts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/edvin/coordinator/internal/model"
)

const workerRules = `groups:
  - name: worker-health
    rules:
      - alert: WorkerDown
        expr: up == 0
        labels:
          severity: critical
      - record: job:up:count
        expr: count(up)
`

func newTestRenderer(t *testing.T) (*Renderer, string, string, string) {
	t.Helper()
	dir := t.TempDir()
	workerDir := filepath.Join(dir, "worker")
	proxyDir := filepath.Join(dir, "proxy")
	outDir := filepath.Join(dir, "consolidated")
	require.NoError(t, os.MkdirAll(workerDir, 0o755))
	require.NoError(t, os.MkdirAll(proxyDir, 0o755))
	return NewRenderer(zerolog.Nop(), workerDir, proxyDir, outDir), workerDir, proxyDir, outDir
}

type parsedRules struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert  string            `yaml:"alert"`
			Record string            `yaml:"record"`
			Labels map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestRender_InjectsTopologyLabels(t *testing.T) {
	r, workerDir, _, outDir := newTestRenderer(t)
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "worker.rules"), []byte(workerRules), 0o644))

	topology := []model.TopologyEntry{
		{Unit: "reader/0", Application: "reader", Charm: "reader-charm", Address: "10.0.0.1"},
		{Unit: "reader/1", Application: "reader", Charm: "reader-charm", Address: "10.0.0.2"},
	}
	require.NoError(t, r.Render(topology))

	raw, err := os.ReadFile(filepath.Join(outDir, "rendered_reader.rules"))
	require.NoError(t, err)

	var parsed parsedRules
	require.NoError(t, yaml.Unmarshal(raw, &parsed))
	require.Len(t, parsed.Groups, 1)
	assert.Equal(t, "reader_worker-health", parsed.Groups[0].Name)
	require.Len(t, parsed.Groups[0].Rules, 2)

	alert := parsed.Groups[0].Rules[0]
	assert.Equal(t, "WorkerDown", alert.Alert)
	assert.Equal(t, "reader", alert.Labels["application"])
	assert.Equal(t, "reader-charm", alert.Labels["charm_name"])
	// Existing labels survive injection.
	assert.Equal(t, "critical", alert.Labels["severity"])

	record := parsed.Groups[0].Rules[1]
	assert.Equal(t, "job:up:count", record.Record)
	assert.Equal(t, "reader", record.Labels["application"])
}

func TestRender_OneFilePerApplication(t *testing.T) {
	r, workerDir, _, outDir := newTestRenderer(t)
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "worker.rules"), []byte(workerRules), 0o644))

	topology := []model.TopologyEntry{
		{Unit: "reader/0", Application: "reader", Address: "10.0.0.1"},
		{Unit: "writer/0", Application: "writer", Address: "10.0.0.2"},
	}
	require.NoError(t, r.Render(topology))

	assert.FileExists(t, filepath.Join(outDir, "rendered_reader.rules"))
	assert.FileExists(t, filepath.Join(outDir, "rendered_writer.rules"))
}

func TestRender_PrunesStaleRenders(t *testing.T) {
	r, workerDir, _, outDir := newTestRenderer(t)
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "worker.rules"), []byte(workerRules), 0o644))

	topology := []model.TopologyEntry{{Unit: "reader/0", Application: "reader", Address: "10.0.0.1"}}
	require.NoError(t, r.Render(topology))
	assert.FileExists(t, filepath.Join(outDir, "rendered_reader.rules"))

	// The application departed: its render disappears on the next pass.
	require.NoError(t, r.Render(nil))
	assert.NoFileExists(t, filepath.Join(outDir, "rendered_reader.rules"))
}

func TestRender_CopiesProxyRules(t *testing.T) {
	r, _, proxyDir, outDir := newTestRenderer(t)
	proxyRules := "groups:\n  - name: proxy\n    rules: []\n"
	require.NoError(t, os.WriteFile(filepath.Join(proxyDir, "proxy.rules"), []byte(proxyRules), 0o644))

	require.NoError(t, r.Render(nil))

	raw, err := os.ReadFile(filepath.Join(outDir, "proxy.rules"))
	require.NoError(t, err)
	assert.Equal(t, proxyRules, string(raw))
}

func TestRender_SkipsUnparseableAndForeignFiles(t *testing.T) {
	r, workerDir, _, outDir := newTestRenderer(t)
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "broken.rules"), []byte("{not yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "README.md"), []byte("docs"), 0o644))

	topology := []model.TopologyEntry{{Unit: "reader/0", Application: "reader", Address: "10.0.0.1"}}
	require.NoError(t, r.Render(topology))

	// Nothing parseable: no render is produced.
	assert.NoFileExists(t, filepath.Join(outDir, "rendered_reader.rules"))
}

func TestRender_MissingSourceDirsAreFine(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(zerolog.Nop(),
		filepath.Join(dir, "absent-worker"),
		filepath.Join(dir, "absent-proxy"),
		filepath.Join(dir, "out"),
	)
	require.NoError(t, r.Render([]model.TopologyEntry{{Unit: "reader/0", Application: "reader", Address: "10.0.0.1"}}))
}
