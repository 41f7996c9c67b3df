package coordinator

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/edvin/coordinator/internal/model"
)

type reconcileMetrics struct {
	duration  prometheus.Histogram
	total     *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	published prometheus.Counter
}

func newReconcileMetrics(reg prometheus.Registerer) reconcileMetrics {
	factory := promauto.With(reg)
	return reconcileMetrics{
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coordinator_reconcile_duration_seconds",
			Help:    "Duration of each reconciliation",
			Buckets: prometheus.DefBuckets,
		}),
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_reconcile_total",
			Help: "Total reconciliations",
		}, []string{"result"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_publish_skipped_total",
			Help: "Publishes skipped by gate",
		}, []string{"reason"}),
		published: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_publish_total",
			Help: "Bundle publishes attempted",
		}),
	}
}

// UpdateCluster is the single reconciliation entry point. It is idempotent
// and safe to invoke redundantly: every call recomputes the full desired
// state from the current relation data, refreshes the local proxy, and --
// only when the deployment is coherent and this node leads -- republishes
// the configuration bundle to all workers.
func (c *Coordinator) UpdateCluster() error {
	start := time.Now()
	err := c.updateCluster()
	c.metrics.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.total.WithLabelValues("failure").Inc()
		return err
	}
	c.metrics.total.WithLabelValues("success").Inc()
	return nil
}

func (c *Coordinator) updateCluster() error {
	// The local proxy stays runnable even in a degraded cluster.
	if err := c.refreshProxy(); err != nil {
		return fmt.Errorf("refresh proxy: %w", err)
	}

	verdict := c.Verdict()
	if !verdict.Coherent {
		c.metrics.skipped.WithLabelValues("incoherent").Inc()
		c.logger.Error().
			Strs("missing_roles", verdict.MissingRoles).
			Msg("skipped cluster update: incoherent deployment")
		return nil
	}
	if !c.leadership.CanWrite() {
		c.metrics.skipped.WithLabelValues("not_leader").Inc()
		c.logger.Debug().Msg("skipped cluster update: not the leader")
		return nil
	}

	bundle := c.assembleBundle()
	c.metrics.published.Inc()
	if err := c.cluster.Publish(bundle); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

// refreshProxy rewrites the proxy's declarative process configuration,
// syncs TLS material on disk with its current availability, and installs
// the generated proxy config.
func (c *Coordinator) refreshProxy() error {
	if err := c.proxy.EnsureLayer(); err != nil {
		return err
	}
	if c.TLSAvailable() {
		mat, err := c.tls.Read()
		if err != nil {
			return err
		}
		if err := c.proxy.ConfigureTLS(mat); err != nil {
			return err
		}
	} else {
		if err := c.proxy.DisableTLS(); err != nil {
			return err
		}
	}
	return c.proxy.WriteConfig(c.proxyConfig(c))
}

// assembleBundle builds the outbound configuration. Optional sources
// degrade to absent fields; they never abort the reconciliation.
func (c *Coordinator) assembleBundle() *model.PublishedBundle {
	bundle := &model.PublishedBundle{
		WorkerConfig:  c.workersConfig(c),
		LokiEndpoints: map[string]string{},
	}
	if c.logSource != nil {
		bundle.LokiEndpoints = c.logSource.EndpointsByUnit()
	}
	// Certs travel in the clear; they are not sensitive. The private key
	// is granted by secret reference only.
	if c.TLSAvailable() {
		if mat, err := c.tls.Read(); err == nil {
			bundle.CACert = mat.CACert
			bundle.ServerCert = mat.ServerCert
			bundle.PrivkeySecretID = c.cluster.GrantPrivateKey(c.tls.SecretLabel())
		}
	}
	if c.tracingReceivers != nil {
		bundle.TracingReceivers = c.tracingReceivers()
	}
	return bundle
}
