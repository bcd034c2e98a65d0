package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// IPEcho reports the public address seen by a remote echo service.
type IPEcho interface {
	Direct(ctx context.Context) (string, error)
	ViaSOCKS(ctx context.Context, host string, port int) (string, error)
}

// HTTPEcho queries a plain-text IP echo endpoint such as checkip.amazonaws.com.
type HTTPEcho struct {
	URL     string
	Timeout time.Duration
}

// NewHTTPEcho returns an echo client for url.
func NewHTTPEcho(url string, timeout time.Duration) *HTTPEcho {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEcho{URL: url, Timeout: timeout}
}

func (e *HTTPEcho) Direct(ctx context.Context) (string, error) {
	return e.fetch(ctx, &http.Client{Timeout: e.Timeout})
}

func (e *HTTPEcho) ViaSOCKS(ctx context.Context, host string, port int) (string, error) {
	client, err := SOCKSClient(host, port, e.Timeout)
	if err != nil {
		return "", err
	}
	return e.fetch(ctx, client)
}

func (e *HTTPEcho) fetch(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip echo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip echo bad status: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read ip echo body: %w", err)
	}
	addr := strings.TrimSpace(string(body))
	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("ip echo returned %q, not an address", addr)
	}
	return addr, nil
}

// SOCKSClient returns an HTTP client whose connections go through the SOCKS5 proxy at host:port.
func SOCKSClient(host string, port int, timeout time.Duration) (*http.Client, error) {
	transport, err := SOCKSTransport(host, port)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// SOCKSTransport returns a transport dialing through the SOCKS5 proxy at host:port.
func SOCKSTransport(host string, port int) (*http.Transport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to build socks5 dialer for %s: %w", addr, err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, address string) (net.Conn, error) {
			return dialer.Dial(network, address)
		}
	}
	return transport, nil
}
