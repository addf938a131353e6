package github

import "net/http"

const (
	userAgent    = "botrunner"
	acceptHeader = "application/vnd.github+json"
)

// headerTransport stamps the default headers and, when a token is set, a
// bearer credential on every request.
type headerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("User-Agent", userAgent)
	req2.Header.Set("Accept", acceptHeader)
	if t.token != "" {
		req2.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}
