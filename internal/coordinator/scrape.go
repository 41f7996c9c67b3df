package coordinator

import (
	"fmt"

	"github.com/edvin/coordinator/internal/model"
)

// WorkerScrapeJobs builds one Prometheus scrape job per connected worker
// unit, pointed at its metrics port and relabeled with its topology.
func (c *Coordinator) WorkerScrapeJobs() []model.ScrapeJob {
	var jobs []model.ScrapeJob
	for _, worker := range c.cluster.GatherTopology() {
		jobs = append(jobs, model.ScrapeJob{
			StaticConfigs: []model.ScrapeStaticConfig{
				{Targets: []string{fmt.Sprintf("%s:%d", worker.Address, c.workerMetricsPort)}},
			},
			RelabelConfigs: []model.ScrapeRelabelConfig{
				{TargetLabel: "charm", Replacement: worker.Charm},
				{TargetLabel: "unit", Replacement: worker.Unit},
				{TargetLabel: "application", Replacement: worker.Application},
			},
		})
	}
	return jobs
}

// ProxyScrapeJob is the scrape job for the proxy's metrics exporter.
func (c *Coordinator) ProxyScrapeJob() model.ScrapeJob {
	return model.ScrapeJob{
		StaticConfigs: []model.ScrapeStaticConfig{
			{Targets: []string{fmt.Sprintf("%s:%d", c.hostname, c.proxyExporterPort)}},
		},
	}
}

// ScrapeJobs returns everything the metrics backend should scrape: all
// workers plus the proxy itself. Re-derived on demand from the current
// topology.
func (c *Coordinator) ScrapeJobs() []model.ScrapeJob {
	return append(c.WorkerScrapeJobs(), c.ProxyScrapeJob())
}
