// Package coordinator implements the control logic of the coordinator node:
// on every observed change it decides whether the deployment is coherent
// and, when it is and this node leads, reconciles and republishes the
// cluster configuration.
package coordinator

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/alerts"
	"github.com/edvin/coordinator/internal/cluster"
	"github.com/edvin/coordinator/internal/coherence"
	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/sources"
)

// Proxy is the local reverse-proxy manager the reconciler drives. Its
// process configuration is refreshed on every reconciliation.
type Proxy interface {
	EnsureLayer() error
	WriteConfig(config string) error
	ConfigureTLS(mat *model.TLSMaterial) error
	DisableTLS() error
}

// Leadership is the single capability check gating every outbound write:
// only the elected leader's view is authoritative.
type Leadership interface {
	CanWrite() bool
}

// StaticLeadership is a fixed leadership answer, for tests and for
// substrates that decide leadership out of process.
type StaticLeadership bool

func (l StaticLeadership) CanWrite() bool { return bool(l) }

// WorkersConfigFunc generates the worker configuration blob from the full
// coordinator context.
type WorkersConfigFunc func(*Coordinator) string

// ProxyConfigFunc generates the reverse-proxy configuration from the full
// coordinator context.
type ProxyConfigFunc func(*Coordinator) string

// TracingReceiversFunc returns the protocol-to-URL receiver map to publish
// to workers. Optional; when absent no receivers are published.
type TracingReceiversFunc func() map[string]string

// Options configures a Coordinator.
type Options struct {
	Logger        zerolog.Logger
	Roles         *model.RolesConfig
	Cluster       *cluster.View
	ObjectStorage *sources.ObjectStorage
	TLS           *sources.TLS
	Logging       *sources.Logging
	Proxy         Proxy
	Leadership    Leadership

	WorkersConfig    WorkersConfigFunc
	ProxyConfig      ProxyConfigFunc
	TracingReceivers TracingReceiversFunc

	// Checker overrides the default coherence rules.
	Checker coherence.Checker
	// Alerts, when set, re-renders consolidated alert rules on cluster
	// changes.
	Alerts *alerts.Renderer

	// WorkerMetricsPort is the port workers expose their metrics on.
	WorkerMetricsPort int
	// ProxyExporterPort is the proxy metrics-exporter sidecar port.
	ProxyExporterPort int
	// Hostname overrides the local hostname used for the proxy scrape
	// target.
	Hostname string

	// Registerer receives the reconciler metrics. Defaults to the global
	// prometheus registerer.
	Registerer prometheus.Registerer
}

// Coordinator ties the cluster view, the credential sources and the proxy
// together and carries the reconciliation entry point. It holds no derived
// state: every read recomputes from the relation store.
type Coordinator struct {
	logger     zerolog.Logger
	roles      *model.RolesConfig
	cluster    *cluster.View
	s3         *sources.ObjectStorage
	tls        *sources.TLS
	logSource  *sources.Logging
	proxy      Proxy
	leadership Leadership
	checker    coherence.Checker
	alerts     *alerts.Renderer

	workersConfig    WorkersConfigFunc
	proxyConfig      ProxyConfigFunc
	tracingReceivers TracingReceiversFunc

	workerMetricsPort int
	proxyExporterPort int
	hostname          string

	handlers map[NotificationKind]func() error
	metrics  reconcileMetrics
}

// New validates the roles config and builds a Coordinator. A malformed
// roles config is fatal: the coordinator must not start.
func New(opts Options) (*Coordinator, error) {
	if opts.Roles == nil {
		return nil, fmt.Errorf("coordinator: roles config is required")
	}
	if err := opts.Roles.Validate(); err != nil {
		return nil, err
	}
	if opts.Cluster == nil || opts.Proxy == nil || opts.Leadership == nil {
		return nil, fmt.Errorf("coordinator: cluster view, proxy and leadership are required")
	}
	if opts.WorkersConfig == nil || opts.ProxyConfig == nil {
		return nil, fmt.Errorf("coordinator: workers and proxy config generators are required")
	}
	if opts.Checker == nil {
		opts.Checker = coherence.DefaultChecker{}
	}
	if opts.ProxyExporterPort == 0 {
		opts.ProxyExporterPort = 9113
	}
	if opts.Hostname == "" {
		opts.Hostname, _ = os.Hostname()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	c := &Coordinator{
		logger:            opts.Logger.With().Str("component", "coordinator").Logger(),
		roles:             opts.Roles,
		cluster:           opts.Cluster,
		s3:                opts.ObjectStorage,
		tls:               opts.TLS,
		logSource:         opts.Logging,
		proxy:             opts.Proxy,
		leadership:        opts.Leadership,
		checker:           opts.Checker,
		alerts:            opts.Alerts,
		workersConfig:     opts.WorkersConfig,
		proxyConfig:       opts.ProxyConfig,
		tracingReceivers:  opts.TracingReceivers,
		workerMetricsPort: opts.WorkerMetricsPort,
		proxyExporterPort: opts.ProxyExporterPort,
		hostname:          opts.Hostname,
		metrics:           newReconcileMetrics(opts.Registerer),
	}
	c.handlers = c.dispatchTable()

	if c.alerts != nil {
		if err := c.alerts.Render(c.cluster.GatherTopology()); err != nil {
			c.logger.Warn().Err(err).Msg("failed to render alert rules")
		}
	}
	return c, nil
}

// Roles returns the validated roles config.
func (c *Coordinator) Roles() *model.RolesConfig { return c.roles }

// Cluster returns the cluster view, for config generators that need the
// topology.
func (c *Coordinator) Cluster() *cluster.View { return c.cluster }

// Snapshot recomputes the current cluster state.
func (c *Coordinator) Snapshot() *model.ClusterSnapshot { return c.cluster.Snapshot() }

// Verdict evaluates the coherence checker on the current snapshot.
func (c *Coordinator) Verdict() model.CoherenceVerdict {
	return c.checker.Evaluate(c.Snapshot(), c.roles)
}

// S3Ready reports whether a complete object-storage configuration exists.
func (c *Coordinator) S3Ready() bool {
	return c.s3 != nil && c.s3.Available()
}

// ObjectStorageConfig returns the parsed object-storage credentials, or a
// NotFoundError when the integration is inactive.
func (c *Coordinator) ObjectStorageConfig() (*model.ObjectStorageConfig, error) {
	if c.s3 == nil {
		return nil, &sources.NotFoundError{Reason: "s3 integration inactive"}
	}
	return c.s3.Read()
}

// TLSAvailable reports whether the full TLS material is present.
func (c *Coordinator) TLSAvailable() bool {
	return c.tls != nil && c.tls.Available()
}

// CanHandleEvents reports whether the coordinator is in a state to act:
// workers connected, deployment coherent, object storage configured.
func (c *Coordinator) CanHandleEvents() bool {
	return coherence.CanHandleEvents(c.Snapshot(), c.roles, c.S3Ready())
}
