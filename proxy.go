package gaxios

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// proxyEnv holds proxy-related environment configuration. Explicit
// per-call or per-instance settings always take precedence over it.
type proxyEnv struct {
	HTTPSProxy string
	HTTPProxy  string
	NoProxy    []string
}

// loadProxyEnv reads HTTPS_PROXY, HTTP_PROXY and NO_PROXY (either casing;
// lowercase collapses onto the same key) once per client.
func loadProxyEnv() *proxyEnv {
	k := koanf.New(".")
	if err := k.Load(envprovider.Provider("", ".", strings.ToLower), nil); err != nil {
		return &proxyEnv{}
	}

	pe := &proxyEnv{
		HTTPSProxy: k.String("https_proxy"),
		HTTPProxy:  k.String("http_proxy"),
	}
	for _, rule := range strings.Split(k.String("no_proxy"), ",") {
		if rule = strings.TrimSpace(rule); rule != "" {
			pe.NoProxy = append(pe.NoProxy, rule)
		}
	}
	return pe
}

// proxyURL returns the configured proxy for a request, preferring the
// HTTPS variable as most targets are https.
func (pe *proxyEnv) proxyURL() string {
	if pe.HTTPSProxy != "" {
		return pe.HTTPSProxy
	}
	return pe.HTTPProxy
}

// matchNoProxy reports whether any rule excludes the target from proxying.
// Rules match, in order of specificity: origin equality for URL-shaped
// rules; hostname suffix for rules starting with "*." or "."; a regular
// expression test against the full URL for rules carrying regex
// metacharacters; exact match against origin, hostname or full URL
// otherwise.
func matchNoProxy(rules []string, target *url.URL) bool {
	origin := target.Scheme + "://" + target.Host
	hostname := target.Hostname()
	full := target.String()

	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if ruleURL, err := url.Parse(rule); err == nil && ruleURL.Scheme != "" && ruleURL.Host != "" {
			if ruleURL.Scheme+"://"+ruleURL.Host == origin {
				return true
			}
			continue
		}
		if strings.HasPrefix(rule, "*.") || strings.HasPrefix(rule, ".") {
			suffix := strings.TrimPrefix(rule, "*")
			if strings.HasSuffix(hostname, suffix) {
				return true
			}
			continue
		}
		if strings.ContainsAny(rule, `\^$()[]{}|+?`) {
			if re, err := regexp.Compile(rule); err == nil && re.MatchString(full) {
				return true
			}
			continue
		}
		if rule == origin || rule == hostname || rule == full {
			return true
		}
	}
	return false
}

// agentCache memoizes constructed transports per client instance, keyed by
// proxy URL or by client certificate material. Racing constructions of the
// same key are harmless: the duplicate agent is discarded.
type agentCache struct {
	mu     sync.Mutex
	agents map[string]http.RoundTripper
}

func newAgentCache() *agentCache {
	return &agentCache{agents: make(map[string]http.RoundTripper)}
}

func (c *agentCache) get(key string, build func() (http.RoundTripper, error)) (http.RoundTripper, error) {
	c.mu.Lock()
	agent, ok := c.agents[key]
	c.mu.Unlock()
	if ok {
		return agent, nil
	}

	agent, err := build()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.agents[key] = agent
	c.mu.Unlock()
	return agent, nil
}

// resolveAgent selects the transport for a prepared request. An explicit
// Agent wins and skips all proxy/mTLS logic. Otherwise a proxy-aware
// transport is built (and cached) when a proxy applies, or a TLS transport
// when client certificates are configured. nil means direct connection.
func (c *Client) resolveAgent(cfg *RequestConfig, target *url.URL) (http.RoundTripper, error) {
	if cfg.Agent != nil {
		return cfg.Agent, nil
	}

	proxy := cfg.Proxy
	if proxy == "" {
		proxy = c.env.proxyURL()
	}
	noProxy := append(append([]string(nil), cfg.NoProxy...), c.env.NoProxy...)

	hasCert := len(cfg.CertPEM) > 0 && len(cfg.KeyPEM) > 0

	if proxy != "" && !matchNoProxy(noProxy, target) {
		key := "proxy:" + proxy
		if hasCert {
			key += ":" + certFingerprint(cfg.CertPEM, cfg.KeyPEM)
		}
		return c.agents.get(key, func() (http.RoundTripper, error) {
			proxyParsed, err := url.Parse(proxy)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy url %q: %w", proxy, err)
			}
			tlsConfig, err := clientTLSConfig(cfg)
			if err != nil {
				return nil, err
			}
			t := baseTransport()
			t.Proxy = http.ProxyURL(proxyParsed)
			t.TLSClientConfig = tlsConfig
			return t, nil
		})
	}

	if hasCert {
		key := "cert:" + certFingerprint(cfg.CertPEM, cfg.KeyPEM)
		return c.agents.get(key, func() (http.RoundTripper, error) {
			tlsConfig, err := clientTLSConfig(cfg)
			if err != nil {
				return nil, err
			}
			t := baseTransport()
			t.TLSClientConfig = tlsConfig
			return t, nil
		})
	}

	return nil, nil
}

func clientTLSConfig(cfg *RequestConfig) (*tls.Config, error) {
	if len(cfg.CertPEM) == 0 || len(cfg.KeyPEM) == 0 {
		return nil, nil
	}
	cert, err := tls.X509KeyPair(cfg.CertPEM, cfg.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid client certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func certFingerprint(certPEM, keyPEM []byte) string {
	h := sha256.New()
	h.Write(certPEM)
	h.Write(keyPEM)
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// baseTransport mirrors net/http defaults without ProxyFromEnvironment;
// proxy selection is the client's responsibility.
func baseTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
