package main

import (
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edvin/coordinator/internal/cluster"
	"github.com/edvin/coordinator/internal/config"
	"github.com/edvin/coordinator/internal/coordinator"
	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/proxy"
	"github.com/edvin/coordinator/internal/sources"
)

// workerConfigDoc is the default worker configuration blob, YAML-rendered.
// Deployments with workload-specific config layouts supply their own
// generator instead.
type workerConfigDoc struct {
	ObjectStorage *model.ObjectStorageConfig `yaml:"object_storage,omitempty"`
	Topology      []model.TopologyEntry      `yaml:"topology"`
	RoleCounts    map[string]int             `yaml:"role_counts"`
}

func workersConfig(s3Source *sources.ObjectStorage) coordinator.WorkersConfigFunc {
	return func(c *coordinator.Coordinator) string {
		doc := workerConfigDoc{
			Topology:   c.Cluster().GatherTopology(),
			RoleCounts: c.Cluster().GatherRoles(),
		}
		if storage, err := s3Source.Read(); err == nil {
			doc.ObjectStorage = storage
		}
		out, err := yaml.Marshal(&doc)
		if err != nil {
			return ""
		}
		return string(out)
	}
}

func proxyConfig(mgr *proxy.Manager, view *cluster.View, roles *model.RolesConfig, cfg *config.Config) coordinator.ProxyConfigFunc {
	serverName := hostFromURL(cfg.ExternalURL)
	return func(c *coordinator.Coordinator) string {
		upstreams := proxy.UpstreamsFromTopology(
			view.GatherTopology(), roles, view.RolesByApplication(), cfg.WorkerMetricsPort,
		)
		rendered, err := mgr.RenderConfig(serverName, c.TLSAvailable(), upstreams)
		if err != nil {
			return ""
		}
		return rendered
	}
}

func hostFromURL(raw string) string {
	if raw == "" {
		return "_"
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.Split(u.Host, ":")[0]
	}
	return raw
}
