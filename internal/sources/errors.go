// Package sources adapts the coordinator's external data integrations --
// object storage credentials, TLS material, log-push endpoints and trace
// receivers -- into typed, independently available inputs for reconciliation.
package sources

import "errors"

// NotFoundError reports that an optional external data source is absent or
// not yet complete. It is an expected condition, converted into absence at
// the point of use rather than propagated.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return e.Reason
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
