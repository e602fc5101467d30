package ports

import "net/http"

// HTTPClient sends the REST requests of the DeFiLlama source and the
// snapshot publisher. Tests substitute a recording client; production code
// passes an *http.Client built with the configured timeout.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
