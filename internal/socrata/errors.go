package socrata

import (
	"fmt"
	"net/http"
)

// RemoteFetchError reports a failed portal request: unreachable host,
// unknown dataset, rejected credentials or an undecodable body. Status is
// zero when no HTTP response was received.
type RemoteFetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *RemoteFetchError) Error() string {
	switch e.Status {
	case 0:
		return fmt.Sprintf("socrata: %s: %v", e.Op, e.Err)
	case http.StatusNotFound:
		return fmt.Sprintf("socrata: %s: not found (%s)", e.Op, e.URL)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("socrata: %s: access denied (status %d); check the app token", e.Op, e.Status)
	default:
		return fmt.Sprintf("socrata: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }
