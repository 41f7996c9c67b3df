package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/coordinator/internal/model"
)

func TestCollectStatus_NoWorkers(t *testing.T) {
	f := newFixture(t, Options{})

	statuses := f.coord.CollectStatus()
	// Both blockers plus the s3 blocker are collected, not short-circuited.
	assert.Contains(t, statuses, Status{Level: StatusBlocked, Message: "Missing any worker relation"})
	assert.Contains(t, statuses, Status{Level: StatusBlocked, Message: "Cluster inconsistent"})
	assert.Contains(t, statuses, Status{Level: StatusBlocked, Message: "Missing S3 integration"})
}

func TestCollectStatus_IncoherentWithWorkers(t *testing.T) {
	f := newFixture(t, Options{})
	f.addWorker("reader", `"read"`, "10.0.0.1")
	f.addS3()

	statuses := f.coord.CollectStatus()
	assert.NotContains(t, statuses, Status{Level: StatusBlocked, Message: "Missing any worker relation"})
	assert.Contains(t, statuses, Status{Level: StatusBlocked, Message: "Cluster inconsistent"})
	assert.NotContains(t, statuses, Status{Level: StatusBlocked, Message: "Missing S3 integration"})
}

func TestCollectStatus_MalformedWorkerStillReportsInconsistent(t *testing.T) {
	f := newFixture(t, Options{})
	f.addWorker("reader", `"read"`, "10.0.0.1")
	bad := f.store.AddRelation("cluster", "mangled")
	bad.SetRemoteAppData(map[string]string{"role": `{"oops": true}`})
	bad.SetRemoteUnitData("mangled/0", map[string]string{"address": "10.0.0.9"})
	f.addS3()

	statuses := f.coord.CollectStatus()
	assert.Contains(t, statuses, Status{Level: StatusBlocked, Message: "Cluster inconsistent"})
}

func TestCollectStatus_MissingS3(t *testing.T) {
	f := newFixture(t, Options{})
	f.addCoherentCluster()

	statuses := f.coord.CollectStatus()
	assert.Equal(t, []Status{{Level: StatusBlocked, Message: "Missing S3 integration"}}, statuses)
}

func TestCollectStatus_Degraded(t *testing.T) {
	roles := testRoles()
	roles.RecommendedDeployment = map[string]int{"read": 5}
	f := newFixture(t, Options{Roles: roles})
	f.addCoherentCluster()
	f.addS3()

	statuses := f.coord.CollectStatus()
	assert.Equal(t, []Status{{Level: StatusActive, Message: "Degraded"}}, statuses)
}

func TestCollectStatus_Healthy(t *testing.T) {
	f := newFixture(t, Options{})
	f.addCoherentCluster()
	f.addS3()

	statuses := f.coord.CollectStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, Status{Level: StatusActive}, statuses[0])
}

func TestCollectStatus_NoRecommendedCriterionIsHealthy(t *testing.T) {
	roles := &model.RolesConfig{
		Roles:             []string{"read", "write", "backend"},
		MinimalDeployment: []string{"read", "write", "backend"},
	}
	f := newFixture(t, Options{Roles: roles})
	f.addCoherentCluster()
	f.addS3()

	// Recommended undefined: healthy, not degraded.
	statuses := f.coord.CollectStatus()
	assert.Equal(t, []Status{{Level: StatusActive}}, statuses)
}
