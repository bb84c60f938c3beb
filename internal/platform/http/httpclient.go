// Package http provides the outbound HTTP client shared by external API adapters.
package http

import (
	"net"
	"net/http"
	"time"
)

// UserAgent is sent on outbound requests that do not set their own.
const UserAgent = "leaf_backend/1.0"

// NewHTTPClient returns a client tuned for calls to external APIs.
//
// http.DefaultClient has no timeout, so adapters must never use it. The transport
// honours HTTP_PROXY and friends, caps the dial and TLS handshake at 5s and keeps up
// to 100 idle connections. timeout bounds the whole request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: &userAgentTransport{next: t}}
}

type userAgentTransport struct {
	next http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.next.RoundTrip(req)
	}
	// RoundTripper must not mutate the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", UserAgent)
	return u.next.RoundTrip(clone)
}
