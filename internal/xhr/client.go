package xhr

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// Config configures a Client.
type Config struct {
	Timeout time.Duration
	// ProxyURL is an http://, https://, socks5:// or socks5h:// proxy.
	ProxyURL string
	// NoProxy is a comma-separated list of hosts that bypass the proxy.
	NoProxy   string
	TLSConfig *tls.Config
}

// Client carries the connection settings shared by the requests it creates.
// It uses its own transport, never http.DefaultTransport.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring transport: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout: timeout,
	}, nil
}

// NewRequest returns an unsent request bound to c.
func (c *Client) NewRequest() *Request {
	return &Request{client: c}
}

// CloseIdleConnections closes keep-alive connections that are not in use.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// DefaultClient returns the client used by New.
func DefaultClient() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		// A zero Config never fails to build.
		defaultClient, _ = NewClient(Config{})
	}
	return defaultClient
}

// SetDefaultClient replaces the client used by New.
func SetDefaultClient(c *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = c
}

func buildTransport(cfg Config) (*http.Transport, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     cfg.TLSConfig,
	}
	if cfg.ProxyURL == "" {
		return transport, nil
	}

	parsed, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}

	switch parsed.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
		}
		bypass := parseNoProxy(cfg.NoProxy)
		direct := &net.Dialer{Timeout: 30 * time.Second}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, _ := net.SplitHostPort(addr)
			if shouldBypassProxy(host, bypass) {
				return direct.DialContext(ctx, network, addr)
			}
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		bypass := parseNoProxy(cfg.NoProxy)
		transport.Proxy = func(r *http.Request) (*url.URL, error) {
			if shouldBypassProxy(r.URL.Hostname(), bypass) {
				return nil, nil
			}
			return parsed, nil
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
	}
	return transport, nil
}

func parseNoProxy(noProxy string) []string {
	var hosts []string
	for _, p := range strings.Split(noProxy, ",") {
		if p = strings.TrimSpace(p); p != "" {
			hosts = append(hosts, strings.ToLower(p))
		}
	}
	return hosts
}

// shouldBypassProxy matches exact hosts and .suffix entries.
func shouldBypassProxy(host string, noProxyHosts []string) bool {
	host = strings.ToLower(host)
	for _, h := range noProxyHosts {
		if h == host {
			return true
		}
		if strings.HasPrefix(h, ".") && strings.HasSuffix(host, h) {
			return true
		}
	}
	return false
}
