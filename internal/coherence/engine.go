// Package coherence classifies a cluster snapshot against a roles config:
// is the deployment coherent, what is missing, and does it meet the
// recommended scale. All functions here are pure and safe to call on every
// notification.
package coherence

import (
	"sort"

	"github.com/edvin/coordinator/internal/model"
)

// Checker decides deployment coherence from a snapshot. The default rule
// compares covered roles against the minimal deployment; callers may inject
// their own.
type Checker interface {
	Evaluate(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) model.CoherenceVerdict
}

// DefaultChecker applies the standard coherence and recommendation rules.
type DefaultChecker struct{}

// Evaluate implements Checker.
func (DefaultChecker) Evaluate(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) model.CoherenceVerdict {
	return model.CoherenceVerdict{
		Coherent:     IsCoherent(snapshot, cfg),
		MissingRoles: MissingRoles(snapshot, cfg),
		Recommended:  IsRecommended(snapshot, cfg),
	}
}

// IsCoherent reports whether the covered roles are a superset of the
// minimal deployment.
func IsCoherent(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) bool {
	for _, role := range cfg.MinimalDeployment {
		if snapshot.RoleCounts[role] == 0 {
			return false
		}
	}
	return true
}

// MissingRoles returns the minimal-deployment roles no worker covers.
func MissingRoles(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) []string {
	var missing []string
	for _, role := range cfg.MinimalDeployment {
		if snapshot.RoleCounts[role] == 0 {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)
	return missing
}

// IsRecommended reports whether every recommended-deployment role meets its
// minimum worker count. It returns nil when no recommended criterion is
// configured, which is distinct from false.
func IsRecommended(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig) *bool {
	if len(cfg.RecommendedDeployment) == 0 {
		return nil
	}
	recommended := true
	for role, min := range cfg.RecommendedDeployment {
		if snapshot.RoleCounts[role] < min {
			recommended = false
			break
		}
	}
	return &recommended
}

// CanHandleEvents reports whether the coordinator has everything it needs to
// act on events: connected workers, a coherent deployment and object
// storage.
func CanHandleEvents(snapshot *model.ClusterSnapshot, cfg *model.RolesConfig, s3Available bool) bool {
	return snapshot.HasWorkers && IsCoherent(snapshot, cfg) && s3Available
}
