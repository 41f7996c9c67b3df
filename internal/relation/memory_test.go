package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AddAndRemove(t *testing.T) {
	store := NewMemoryStore()

	rel := store.AddRelation("cluster", "mimir-worker")
	require.Len(t, store.Relations("cluster"), 1)
	assert.Equal(t, "mimir-worker", rel.RemoteApplication())

	store.RemoveRelation("cluster", rel.ID())
	assert.Empty(t, store.Relations("cluster"))
}

func TestMemoryStore_EndpointsIsolated(t *testing.T) {
	store := NewMemoryStore()
	store.AddRelation("cluster", "worker")
	store.AddRelation("s3", "s3-integrator")

	assert.Len(t, store.Relations("cluster"), 1)
	assert.Len(t, store.Relations("s3"), 1)
	assert.Empty(t, store.Relations("logging"))
}

func TestReplaceLocalAppData_DiffSuppression(t *testing.T) {
	store := NewMemoryStore()
	rel := store.AddRelation("cluster", "worker")

	changed := rel.ReplaceLocalAppData(map[string]string{"worker_config": "a"})
	assert.True(t, changed)
	assert.Equal(t, 1, store.Writes())

	// Identical write is suppressed.
	changed = rel.ReplaceLocalAppData(map[string]string{"worker_config": "a"})
	assert.False(t, changed)
	assert.Equal(t, 1, store.Writes())

	// Changed value counts again.
	changed = rel.ReplaceLocalAppData(map[string]string{"worker_config": "b"})
	assert.True(t, changed)
	assert.Equal(t, 2, store.Writes())
}

func TestReplaceLocalAppData_DropsAbsentKeys(t *testing.T) {
	store := NewMemoryStore()
	rel := store.AddRelation("cluster", "worker")

	rel.ReplaceLocalAppData(map[string]string{
		"worker_config": "a",
		"ca_cert":       "CA",
	})
	changed := rel.ReplaceLocalAppData(map[string]string{"worker_config": "a"})
	assert.True(t, changed)

	data := rel.LocalAppData()
	assert.Equal(t, "a", data["worker_config"])
	assert.NotContains(t, data, "ca_cert")
}

func TestRemoteUnitData(t *testing.T) {
	store := NewMemoryStore()
	rel := store.AddRelation("cluster", "worker")

	rel.SetRemoteUnitData("worker/0", map[string]string{"address": "10.0.0.1"})
	rel.SetRemoteUnitData("worker/1", map[string]string{"address": "10.0.0.2"})

	assert.Equal(t, []string{"worker/0", "worker/1"}, rel.RemoteUnits())
	assert.Equal(t, "10.0.0.2", rel.RemoteUnitData("worker/1")["address"])

	rel.RemoveRemoteUnit("worker/0")
	assert.Equal(t, []string{"worker/1"}, rel.RemoteUnits())
}

func TestGrantSecret_StableID(t *testing.T) {
	store := NewMemoryStore()
	rel := store.AddRelation("cluster", "worker")
	other := store.AddRelation("cluster", "other-worker")

	id := rel.GrantSecret("coordinator-server-cert")
	assert.NotEmpty(t, id)
	// Same label yields the same reference, on any relation.
	assert.Equal(t, id, rel.GrantSecret("coordinator-server-cert"))
	assert.Equal(t, id, other.GrantSecret("coordinator-server-cert"))
	// A different label yields a different reference.
	assert.NotEqual(t, id, rel.GrantSecret("another-label"))
}

func TestDatabagsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	rel := store.AddRelation("cluster", "worker")
	rel.SetRemoteAppData(map[string]string{"role": `"read"`})

	data := rel.RemoteAppData()
	data["role"] = `"write"`

	assert.Equal(t, `"read"`, rel.RemoteAppData()["role"])
}
