package coordinator

// StatusLevel is the operator-visible severity of a status entry.
type StatusLevel string

const (
	StatusBlocked StatusLevel = "blocked"
	StatusActive  StatusLevel = "active"
)

// Status is one operator-visible status entry.
type Status struct {
	Level   StatusLevel `json:"level"`
	Message string      `json:"message,omitempty"`
}

// CollectStatus projects the coherence state into operator-visible statuses.
// All applicable blockers are collected rather than short-circuited, so the
// operator sees every reason at once. It mutates nothing and is re-evaluated
// on every status-collection notification.
func (c *Coordinator) CollectStatus() []Status {
	var statuses []Status

	snapshot := c.Snapshot()
	verdict := c.checker.Evaluate(snapshot, c.roles)

	if !snapshot.HasWorkers {
		statuses = append(statuses, Status{Level: StatusBlocked, Message: "Missing any worker relation"})
	}
	if !verdict.Coherent {
		statuses = append(statuses, Status{Level: StatusBlocked, Message: "Cluster inconsistent"})
	}
	if !c.S3Ready() {
		statuses = append(statuses, Status{Level: StatusBlocked, Message: "Missing S3 integration"})
	} else if verdict.Recommended != nil && !*verdict.Recommended {
		statuses = append(statuses, Status{Level: StatusActive, Message: "Degraded"})
	} else {
		statuses = append(statuses, Status{Level: StatusActive})
	}

	return statuses
}
