package ollama

import (
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
)

// CountsAsFailure: a missing model (404) is a configuration problem, not an
// outage; network errors and 5xx are outages.
func (c *Client) CountsAsFailure(err error) bool {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return resilience.CountsAsFailure(err)
}
