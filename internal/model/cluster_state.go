package model

// WorkerAnnouncement is a worker application's self-reported identity and
// role set, read from its cluster relation.
type WorkerAnnouncement struct {
	Unit        string   `json:"unit"`
	Application string   `json:"application"`
	Charm       string   `json:"charm_name"`
	Address     string   `json:"address"`
	Roles       []string `json:"roles"`
}

// TopologyEntry identifies one live worker unit and where to reach it.
type TopologyEntry struct {
	Unit        string `json:"unit"`
	Application string `json:"application"`
	Charm       string `json:"charm_name"`
	Address     string `json:"address"`
}

// ClusterSnapshot is the derived view of the connected workers. It is
// recomputed on demand and never cached across notifications.
type ClusterSnapshot struct {
	// RoleCounts maps an expanded role to the number of worker units
	// covering it, directly or through a meta-role.
	RoleCounts map[string]int `json:"role_counts"`
	// HasWorkers is true if at least one cluster relation exists,
	// regardless of whether its data is readable.
	HasWorkers bool `json:"has_workers"`
	// Topology lists every worker unit with a valid address.
	Topology []TopologyEntry `json:"topology"`
}

// CoherenceVerdict is the coherence engine's classification of a snapshot.
type CoherenceVerdict struct {
	Coherent     bool     `json:"coherent"`
	MissingRoles []string `json:"missing_roles,omitempty"`
	// Recommended is nil when the roles config defines no recommended
	// deployment criterion. That is distinct from false.
	Recommended *bool `json:"recommended,omitempty"`
}
