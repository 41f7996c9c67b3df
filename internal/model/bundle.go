package model

// ObjectStorageConfig is the object-storage credential set in the drop-in
// format the workers consume. Endpoint carries no scheme; Insecure records
// whether the raw endpoint was non-https.
type ObjectStorageConfig struct {
	Endpoint        string   `json:"endpoint"`
	Region          string   `json:"region"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	BucketName      string   `json:"bucket_name"`
	Insecure        bool     `json:"insecure"`
	TLSCAChain      []string `json:"tls_ca_chain,omitempty"`
}

// TLSMaterial is the full certificate set needed to serve TLS. All three
// parts must be present for TLS to be considered available.
type TLSMaterial struct {
	ServerCert string `json:"server_cert"`
	CACert     string `json:"ca_cert"`
	PrivateKey string `json:"private_key"`
}

// PublishedBundle is the outbound configuration written to every cluster
// relation. Only the leader coordinator writes it.
type PublishedBundle struct {
	WorkerConfig  string            `json:"worker_config"`
	LokiEndpoints map[string]string `json:"loki_endpoints"`
	// TLS fields are set only when TLS material is fully available. The
	// private key travels as an opaque secret reference, never as bytes.
	CACert           string            `json:"ca_cert,omitempty"`
	ServerCert       string            `json:"server_cert,omitempty"`
	PrivkeySecretID  string            `json:"privkey_secret_id,omitempty"`
	TracingReceivers map[string]string `json:"tracing_receivers,omitempty"`
}

// ScrapeStaticConfig is one static_configs entry of a Prometheus scrape job.
type ScrapeStaticConfig struct {
	Targets []string          `json:"targets"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// ScrapeRelabelConfig is one relabel_configs entry of a Prometheus scrape job.
type ScrapeRelabelConfig struct {
	TargetLabel string `json:"target_label"`
	Replacement string `json:"replacement"`
}

// ScrapeJob is a Prometheus scrape job pointing at a worker or at the
// coordinator's own proxy.
type ScrapeJob struct {
	StaticConfigs  []ScrapeStaticConfig  `json:"static_configs"`
	RelabelConfigs []ScrapeRelabelConfig `json:"relabel_configs,omitempty"`
}
