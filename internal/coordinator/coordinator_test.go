package coordinator

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/coordinator/internal/cluster"
	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/relation"
	"github.com/edvin/coordinator/internal/sources"
)

// fakeProxy records reconciler calls against the proxy manager. The mutex
// matters only for the event-loop tests, which drive it from a second
// goroutine.
type fakeProxy struct {
	mu          sync.Mutex
	layerCalls  int
	writeCalls  int
	writeErr    error
	config      string
	tlsMaterial *model.TLSMaterial
	tlsDisabled bool
}

func (p *fakeProxy) EnsureLayer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layerCalls++
	return nil
}
func (p *fakeProxy) WriteConfig(config string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeCalls++
	p.config = config
	return p.writeErr
}
func (p *fakeProxy) ConfigureTLS(mat *model.TLSMaterial) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tlsMaterial = mat
	p.tlsDisabled = false
	return nil
}
func (p *fakeProxy) DisableTLS() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tlsMaterial = nil
	p.tlsDisabled = true
	return nil
}
func (p *fakeProxy) WriteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeCalls
}

type fakeCertProvider struct {
	enabled bool
}

func (f *fakeCertProvider) Enabled() bool { return f.enabled }
func (f *fakeCertProvider) ServerCert() string {
	if f.enabled {
		return "CERT"
	}
	return ""
}
func (f *fakeCertProvider) PrivateKey() string {
	if f.enabled {
		return "KEY"
	}
	return ""
}
func (f *fakeCertProvider) CACert() string {
	if f.enabled {
		return "CA"
	}
	return ""
}
func (f *fakeCertProvider) SecretLabel() string { return "coordinator-server-cert" }

type fixture struct {
	coord *Coordinator
	store *relation.MemoryStore
	proxy *fakeProxy
	certs *fakeCertProvider
}

func testRoles() *model.RolesConfig {
	return &model.RolesConfig{
		Roles:             []string{"read", "write", "backend", "all"},
		MetaRoles:         map[string][]string{"all": {"read", "write", "backend"}},
		MinimalDeployment: []string{"read", "write", "backend"},
		RecommendedDeployment: map[string]int{
			"read": 2,
		},
	}
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		store: relation.NewMemoryStore(),
		proxy: &fakeProxy{},
		certs: &fakeCertProvider{},
	}
	if opts.Roles == nil {
		opts.Roles = testRoles()
	}
	opts.Logger = zerolog.Nop()
	opts.Cluster = cluster.NewView(zerolog.Nop(), f.store, "cluster", opts.Roles)
	opts.ObjectStorage = sources.NewObjectStorage(zerolog.Nop(), f.store, "s3")
	opts.TLS = sources.NewTLS(f.certs)
	opts.Logging = sources.NewLogging(zerolog.Nop(), f.store, "logging")
	opts.Proxy = f.proxy
	if opts.Leadership == nil {
		opts.Leadership = StaticLeadership(true)
	}
	if opts.WorkersConfig == nil {
		opts.WorkersConfig = func(c *Coordinator) string { return "worker-config" }
	}
	if opts.ProxyConfig == nil {
		opts.ProxyConfig = func(c *Coordinator) string { return "proxy-config" }
	}
	opts.WorkerMetricsPort = 9009
	opts.Hostname = "coordinator-0"
	opts.Registerer = prometheus.NewRegistry()

	coord, err := New(opts)
	require.NoError(t, err)
	f.coord = coord
	return f
}

func (f *fixture) addWorker(app, role string, addresses ...string) *relation.MemoryRelation {
	rel := f.store.AddRelation("cluster", app)
	rel.SetRemoteAppData(map[string]string{"role": role, "charm_name": app + "-charm"})
	for i, addr := range addresses {
		rel.SetRemoteUnitData(app+"/"+string(rune('0'+i)), map[string]string{"address": addr})
	}
	return rel
}

func (f *fixture) addCoherentCluster() {
	f.addWorker("reader", `"read"`, "10.0.0.1", "10.0.0.2")
	f.addWorker("writer", `"write"`, "10.0.0.3")
	f.addWorker("backender", `"backend"`, "10.0.0.4")
}

func (f *fixture) addS3() {
	f.store.AddRelation("s3", "s3-integrator").SetRemoteAppData(map[string]string{
		"endpoint":   "https://s3.example.com",
		"bucket":     "data",
		"access-key": "AKIA",
		"secret-key": "shhh",
	})
}

func TestNew_InvalidRolesConfigFatal(t *testing.T) {
	roles := testRoles()
	roles.MinimalDeployment = append(roles.MinimalDeployment, "undeclared")

	_, err := New(Options{Roles: roles})
	require.Error(t, err)
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNew_MissingRolesConfig(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roles config is required")
}

func TestVerdict_Coherent(t *testing.T) {
	f := newFixture(t, Options{})
	f.addCoherentCluster()

	verdict := f.coord.Verdict()
	assert.True(t, verdict.Coherent)
	assert.Empty(t, verdict.MissingRoles)
	require.NotNil(t, verdict.Recommended)
	assert.True(t, *verdict.Recommended)
}

func TestVerdict_MissingBackendFlipsCoherence(t *testing.T) {
	f := newFixture(t, Options{})
	f.addWorker("reader", `"read"`, "10.0.0.1")
	f.addWorker("writer", `"write"`, "10.0.0.2")

	verdict := f.coord.Verdict()
	assert.False(t, verdict.Coherent)
	assert.Equal(t, []string{"backend"}, verdict.MissingRoles)
}

func TestVerdict_CustomChecker(t *testing.T) {
	always := checkerFunc(func(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) model.CoherenceVerdict {
		return model.CoherenceVerdict{Coherent: true}
	})
	f := newFixture(t, Options{Checker: always})

	// No workers at all, yet the injected checker rules.
	assert.True(t, f.coord.Verdict().Coherent)
}

type checkerFunc func(*model.ClusterSnapshot, *model.RolesConfig) model.CoherenceVerdict

func (fn checkerFunc) Evaluate(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) model.CoherenceVerdict {
	return fn(snapshot, cfg)
}

func TestCanHandleEvents(t *testing.T) {
	f := newFixture(t, Options{})
	assert.False(t, f.coord.CanHandleEvents())

	f.addCoherentCluster()
	assert.False(t, f.coord.CanHandleEvents(), "s3 still missing")

	f.addS3()
	assert.True(t, f.coord.CanHandleEvents())
}

func TestObjectStorageConfig_NotFound(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.coord.ObjectStorageConfig()
	require.Error(t, err)
	assert.True(t, sources.IsNotFound(err))
}
