package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// AuthorizerTimeout bounds the reachability check of the authorizer
const AuthorizerTimeout = 1500 * time.Millisecond

// schemePorts are the ports dialed when a URL names none
var schemePorts = map[string]string{
	"http":  "80",
	"ws":    "80",
	"https": "443",
	"wss":   "443",
}

// DialAddress returns the host:port a service URL resolves to
func DialAddress(serviceURL string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid URL %q: no host", serviceURL)
	}

	port := u.Port()
	if port == "" {
		if port = schemePorts[u.Scheme]; port == "" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Reachable opens and closes a TCP connection to a service URL
func Reachable(ctx context.Context, serviceURL string, timeout time.Duration) error {
	address, err := DialAddress(serviceURL)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn.Close()
}

// PingAuthorizer checks that the authorizer accepts connections
func PingAuthorizer(ctx context.Context, authzURL string) error {
	return Reachable(ctx, authzURL, AuthorizerTimeout)
}
