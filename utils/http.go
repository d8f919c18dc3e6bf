// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the backend client and the workers. Per-call
// deadlines come from the request context.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}
