package coordinator

// NotificationKind names an inbound notification from the delivery
// substrate. Every kind funnels into the same idempotent reconciliation
// entry point; there are no per-kind mutation paths.
type NotificationKind string

const (
	ClusterChanged     NotificationKind = "cluster-changed"
	S3CredentialsGone  NotificationKind = "s3-credentials-gone"
	S3Changed          NotificationKind = "s3-credentials-changed"
	CertChanged        NotificationKind = "certificates-changed"
	LoggingChanged     NotificationKind = "logging-changed"
	TracingChanged     NotificationKind = "tracing-changed"
	ProxyReady         NotificationKind = "proxy-ready"
	ConfigChanged      NotificationKind = "config-changed"
)

// ParseKind maps a notification's wire name to its kind.
func ParseKind(name string) (NotificationKind, bool) {
	kind := NotificationKind(name)
	switch kind {
	case ClusterChanged, S3CredentialsGone, S3Changed, CertChanged,
		LoggingChanged, TracingChanged, ProxyReady, ConfigChanged:
		return kind, true
	}
	return "", false
}

func (c *Coordinator) dispatchTable() map[NotificationKind]func() error {
	return map[NotificationKind]func() error{
		ClusterChanged:    c.onClusterChanged,
		S3Changed:         c.UpdateCluster,
		S3CredentialsGone: c.UpdateCluster,
		CertChanged:       c.UpdateCluster,
		LoggingChanged:    c.UpdateCluster,
		TracingChanged:    c.UpdateCluster,
		ProxyReady:        c.UpdateCluster,
		ConfigChanged:     c.UpdateCluster,
	}
}

// Handle processes one notification to completion. Unknown kinds are logged
// and ignored; duplicates and reordering are harmless because every handler
// recomputes from current state.
func (c *Coordinator) Handle(kind NotificationKind) error {
	handler, ok := c.handlers[kind]
	if !ok {
		c.logger.Warn().Str("kind", string(kind)).Msg("ignoring unknown notification kind")
		return nil
	}
	c.logger.Debug().Str("kind", string(kind)).Msg("handling notification")
	return handler()
}

func (c *Coordinator) onClusterChanged() error {
	if c.alerts != nil {
		if err := c.alerts.Render(c.cluster.GatherTopology()); err != nil {
			c.logger.Warn().Err(err).Msg("failed to render alert rules")
		}
	}
	return c.UpdateCluster()
}
