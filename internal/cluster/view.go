// Package cluster aggregates worker announcements from the cluster endpoint
// and publishes the coordinator's outbound configuration bundle to it.
package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/relation"
)

// Relation databag keys exchanged with workers.
const (
	keyRole      = "role"
	keyCharmName = "charm_name"
	keyAddress   = "address"

	keyWorkerConfig     = "worker_config"
	keyLokiEndpoints    = "loki_endpoints"
	keyCACert           = "ca_cert"
	keyServerCert       = "server_cert"
	keyPrivkeySecretID  = "privkey_secret_id"
	keyTracingReceivers = "tracing_receivers"
)

// View reads and writes the cluster endpoint on behalf of the coordinator.
type View struct {
	logger   zerolog.Logger
	store    relation.Store
	endpoint string
	roles    *model.RolesConfig
}

// NewView creates a cluster view over the given endpoint.
func NewView(logger zerolog.Logger, store relation.Store, endpoint string, roles *model.RolesConfig) *View {
	return &View{
		logger:   logger.With().Str("component", "cluster").Logger(),
		store:    store,
		endpoint: endpoint,
		roles:    roles,
	}
}

// HasWorkers reports whether at least one cluster relation exists. Data
// validity is irrelevant here.
func (v *View) HasWorkers() bool {
	return len(v.store.Relations(v.endpoint)) > 0
}

// GatherRoles counts, per expanded role, how many worker units cover it.
// Meta-role aliases are expanded before counting and never appear as counted
// roles themselves. Workers with unparseable role data are skipped.
func (v *View) GatherRoles() map[string]int {
	counts := make(map[string]int)
	for _, rel := range v.store.Relations(v.endpoint) {
		declared, err := parseRoles(rel.RemoteAppData()[keyRole])
		if err != nil {
			v.logger.Warn().
				Err(err).
				Str("application", rel.RemoteApplication()).
				Msg("skipping worker with unparseable role data")
			continue
		}
		units := len(rel.RemoteUnits())
		if units == 0 {
			continue
		}
		for _, role := range v.roles.ExpandRoles(declared) {
			counts[role] += units
		}
	}
	return counts
}

// RolesByApplication returns each worker application's declared roles,
// unexpanded. Applications with unparseable role data are omitted.
func (v *View) RolesByApplication() map[string][]string {
	byApp := make(map[string][]string)
	for _, rel := range v.store.Relations(v.endpoint) {
		declared, err := parseRoles(rel.RemoteAppData()[keyRole])
		if err != nil {
			continue
		}
		byApp[rel.RemoteApplication()] = declared
	}
	return byApp
}

// GatherTopology returns one entry per live worker unit with a valid
// address, in relation iteration order.
func (v *View) GatherTopology() []model.TopologyEntry {
	var topology []model.TopologyEntry
	for _, rel := range v.store.Relations(v.endpoint) {
		charm := rel.RemoteAppData()[keyCharmName]
		for _, unit := range rel.RemoteUnits() {
			address := rel.RemoteUnitData(unit)[keyAddress]
			if address == "" {
				continue
			}
			topology = append(topology, model.TopologyEntry{
				Unit:        unit,
				Application: rel.RemoteApplication(),
				Charm:       charm,
				Address:     address,
			})
		}
	}
	return topology
}

// Snapshot derives the current cluster state. It is recomputed on every
// call, never cached.
func (v *View) Snapshot() *model.ClusterSnapshot {
	return &model.ClusterSnapshot{
		RoleCounts: v.GatherRoles(),
		HasWorkers: v.HasWorkers(),
		Topology:   v.GatherTopology(),
	}
}

// Publish overwrites the outbound databag of every cluster relation with
// the bundle, wholesale: fields absent from the bundle disappear from the
// databag, so revoked TLS material or tracing receivers stop reaching
// workers on the next publish. Writing an identical bundle is suppressed by
// the store, which makes redundant publishes free.
func (v *View) Publish(bundle *model.PublishedBundle) error {
	lokiEndpoints, err := json.Marshal(bundle.LokiEndpoints)
	if err != nil {
		return fmt.Errorf("encode loki endpoints: %w", err)
	}
	data := map[string]string{
		keyWorkerConfig:  bundle.WorkerConfig,
		keyLokiEndpoints: string(lokiEndpoints),
	}
	if bundle.CACert != "" {
		data[keyCACert] = bundle.CACert
	}
	if bundle.ServerCert != "" {
		data[keyServerCert] = bundle.ServerCert
	}
	if bundle.PrivkeySecretID != "" {
		data[keyPrivkeySecretID] = bundle.PrivkeySecretID
	}
	if bundle.TracingReceivers != nil {
		receivers, err := json.Marshal(bundle.TracingReceivers)
		if err != nil {
			return fmt.Errorf("encode tracing receivers: %w", err)
		}
		data[keyTracingReceivers] = string(receivers)
	}

	for _, rel := range v.store.Relations(v.endpoint) {
		if rel.ReplaceLocalAppData(data) {
			v.logger.Debug().
				Int("relation", rel.ID()).
				Str("application", rel.RemoteApplication()).
				Msg("published cluster bundle")
		}
	}
	return nil
}

// GrantPrivateKey grants the private-key secret stored under label to every
// worker relation and returns its reference ID.
func (v *View) GrantPrivateKey(label string) string {
	var id string
	for _, rel := range v.store.Relations(v.endpoint) {
		id = rel.GrantSecret(label)
	}
	return id
}

// parseRoles decodes the declared role field: either a single JSON string,
// a JSON array of strings, or a bare role name.
func parseRoles(raw string) ([]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("role field is empty")
	}
	var one string
	if err := json.Unmarshal([]byte(raw), &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal([]byte(raw), &many); err == nil {
		return many, nil
	}
	if raw[0] == '[' || raw[0] == '{' || raw[0] == '"' {
		return nil, fmt.Errorf("malformed role field %q", raw)
	}
	// Bare, unquoted role name.
	return []string{raw}, nil
}
