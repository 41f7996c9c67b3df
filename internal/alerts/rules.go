// Package alerts consolidates Prometheus alert rules: per-worker-application
// renders of the base worker rules, plus the proxy's own rules, in one
// directory ready to be shipped to the metrics backend.
package alerts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/edvin/coordinator/internal/model"
)

const renderedPrefix = "rendered_"

// Renderer renders and consolidates alert-rule files.
type Renderer struct {
	logger zerolog.Logger
	// WorkerRulesDir holds the base worker alert rules.
	workerRulesDir string
	// ProxyRulesDir holds the proxy's alert rules, copied verbatim.
	proxyRulesDir string
	// ConsolidatedDir receives the output.
	consolidatedDir string
}

// NewRenderer creates an alert-rule renderer.
func NewRenderer(logger zerolog.Logger, workerRulesDir, proxyRulesDir, consolidatedDir string) *Renderer {
	return &Renderer{
		logger:          logger.With().Str("component", "alert-rules").Logger(),
		workerRulesDir:  workerRulesDir,
		proxyRulesDir:   proxyRulesDir,
		consolidatedDir: consolidatedDir,
	}
}

// Render rebuilds the consolidated directory: stale renders are removed,
// one rules file is rendered per distinct worker application with its
// topology labels injected, and the proxy rules are copied alongside.
func (r *Renderer) Render(topology []model.TopologyEntry) error {
	if err := os.MkdirAll(r.consolidatedDir, 0o755); err != nil {
		return fmt.Errorf("create consolidated dir: %w", err)
	}
	if err := r.removeRendered(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, worker := range topology {
		if seen[worker.Application] {
			continue
		}
		seen[worker.Application] = true
		if err := r.renderApplication(worker); err != nil {
			return err
		}
	}

	return r.copyProxyRules()
}

func (r *Renderer) removeRendered() error {
	matches, err := filepath.Glob(filepath.Join(r.consolidatedDir, renderedPrefix+"*"))
	if err != nil {
		return fmt.Errorf("glob rendered rules: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale rules %s: %w", path, err)
		}
	}
	return nil
}

// ruleFile mirrors the Prometheus rule-file layout closely enough to inject
// labels without disturbing the rest of the document.
type ruleFile struct {
	Groups []ruleGroup `yaml:"groups"`
}

type ruleGroup struct {
	Name  string     `yaml:"name"`
	Rules []yaml.Node `yaml:"rules"`
}

func (r *Renderer) renderApplication(worker model.TopologyEntry) error {
	entries, err := os.ReadDir(r.workerRulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read worker rules dir: %w", err)
	}

	labels := map[string]string{
		"application": worker.Application,
		"unit":        worker.Unit,
		"charm_name":  worker.Charm,
	}

	var merged ruleFile
	for _, entry := range entries {
		if entry.IsDir() || !isRulesFile(entry.Name()) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(r.workerRulesDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read rules %s: %w", entry.Name(), err)
		}
		var file ruleFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			r.logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unparseable rules file")
			continue
		}
		for gi := range file.Groups {
			for ri := range file.Groups[gi].Rules {
				injectLabels(&file.Groups[gi].Rules[ri], labels)
			}
			// Group names must be unique per application in the
			// consolidated file.
			file.Groups[gi].Name = worker.Application + "_" + file.Groups[gi].Name
		}
		merged.Groups = append(merged.Groups, file.Groups...)
	}
	if len(merged.Groups) == 0 {
		return nil
	}

	out, err := yaml.Marshal(&merged)
	if err != nil {
		return fmt.Errorf("marshal rules for %s: %w", worker.Application, err)
	}
	path := filepath.Join(r.consolidatedDir, renderedPrefix+worker.Application+".rules")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write rules for %s: %w", worker.Application, err)
	}
	r.logger.Debug().Str("application", worker.Application).Msg("rendered worker alert rules")
	return nil
}

func (r *Renderer) copyProxyRules() error {
	entries, err := os.ReadDir(r.proxyRulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read proxy rules dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isRulesFile(entry.Name()) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(r.proxyRulesDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read proxy rules %s: %w", entry.Name(), err)
		}
		dst := filepath.Join(r.consolidatedDir, entry.Name())
		if err := os.WriteFile(dst, raw, 0o644); err != nil {
			return fmt.Errorf("copy proxy rules %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// injectLabels adds the topology labels to a rule's labels mapping, creating
// it if absent. Recording rules and alerts share the same shape.
func injectLabels(rule *yaml.Node, labels map[string]string) {
	if rule.Kind != yaml.MappingNode {
		return
	}
	var labelsNode *yaml.Node
	for i := 0; i < len(rule.Content)-1; i += 2 {
		if rule.Content[i].Value == "labels" {
			labelsNode = rule.Content[i+1]
			break
		}
	}
	if labelsNode == nil {
		labelsNode = &yaml.Node{Kind: yaml.MappingNode}
		rule.Content = append(rule.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "labels"},
			labelsNode,
		)
	}
	for k, v := range labels {
		exists := false
		for i := 0; i < len(labelsNode.Content)-1; i += 2 {
			if labelsNode.Content[i].Value == k {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		labelsNode.Content = append(labelsNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v},
		)
	}
}

func isRulesFile(name string) bool {
	return strings.HasSuffix(name, ".rules") ||
		strings.HasSuffix(name, ".yaml") ||
		strings.HasSuffix(name, ".yml")
}
