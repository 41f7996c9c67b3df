// Package relation models the shared per-relation key-value exchange that
// connects the coordinator to workers and to its credential integrations.
// The transport behind it is external; the coordinator only assumes reads
// and writes are local and non-blocking, and that writes of identical data
// are suppressed downstream.
package relation

// Store gives access to all relations on a named endpoint.
type Store interface {
	// Relations returns the live relations on the endpoint, in iteration
	// order. The order is not guaranteed stable across calls beyond each
	// relation appearing once.
	Relations(endpoint string) []Relation
}

// Relation is one relation instance: remote application data, per-remote-unit
// data, and the local application databag this side may write to.
type Relation interface {
	// ID identifies the relation within its endpoint.
	ID() int
	// RemoteApplication is the name of the application on the other side.
	RemoteApplication() string
	// RemoteAppData returns the remote application databag.
	RemoteAppData() map[string]string
	// RemoteUnits returns the names of remote units, in iteration order.
	RemoteUnits() []string
	// RemoteUnitData returns the databag of one remote unit.
	RemoteUnitData(unit string) map[string]string
	// ReplaceLocalAppData overwrites the local application databag
	// wholesale: keys absent from data are removed. It reports whether
	// anything changed; writing identical data is a no-op.
	ReplaceLocalAppData(data map[string]string) bool
	// LocalAppData returns the local application databag.
	LocalAppData() map[string]string
	// GrantSecret grants the secret stored under label to the remote side
	// and returns its reference ID. Granting the same label twice returns
	// the same ID.
	GrantSecret(label string) string
}
