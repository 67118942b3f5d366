package gaxios

import (
	"net/http"
	"net/url"
)

// repeatableHeaders accumulate values on merge instead of overwriting.
// Keys are in canonical form.
var repeatableHeaders = map[string]bool{
	"Set-Cookie": true,
}

// mergeConfig deep-merges per-call options over instance defaults.
// Call-site values win; headers and the retry policy merge key-by-key
// rather than being replaced wholesale. The result owns all of its maps,
// so concurrent calls against one client never share mutable state.
func mergeConfig(defaults, opts *RequestConfig) *RequestConfig {
	cfg := &RequestConfig{}
	if defaults != nil {
		*cfg = *defaults
	}
	cfg.Headers = mergeHeaders(nil, nil)
	cfg.Params = url.Values{}
	cfg.Retry = nil
	if defaults != nil {
		cfg.Headers = mergeHeaders(cfg.Headers, defaults.Headers)
		mergeValues(cfg.Params, defaults.Params)
	}

	if opts != nil {
		if opts.URL != "" {
			cfg.URL = opts.URL
		}
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.Method != "" {
			cfg.Method = opts.Method
		}
		if opts.Body != nil {
			cfg.Body = opts.Body
		}
		if opts.Timeout != 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.MaxRedirects != 0 {
			cfg.MaxRedirects = opts.MaxRedirects
		}
		if opts.MaxContentLength != 0 {
			cfg.MaxContentLength = opts.MaxContentLength
		}
		if opts.ValidateStatus != nil {
			cfg.ValidateStatus = opts.ValidateStatus
		}
		if opts.ResponseType != "" {
			cfg.ResponseType = opts.ResponseType
		}
		if opts.Proxy != "" {
			cfg.Proxy = opts.Proxy
		}
		if opts.NoProxy != nil {
			cfg.NoProxy = append([]string(nil), opts.NoProxy...)
		}
		if opts.Agent != nil {
			cfg.Agent = opts.Agent
		}
		if opts.CertPEM != nil {
			cfg.CertPEM = opts.CertPEM
		}
		if opts.KeyPEM != nil {
			cfg.KeyPEM = opts.KeyPEM
		}
		if opts.Fetcher != nil {
			cfg.Fetcher = opts.Fetcher
		}
		if opts.ParamsSerializer != nil {
			cfg.ParamsSerializer = opts.ParamsSerializer
		}
		if opts.OnRetryAttempt != nil {
			cfg.OnRetryAttempt = opts.OnRetryAttempt
		}
		if opts.ErrorRedactor != nil {
			cfg.ErrorRedactor = opts.ErrorRedactor
		}
		cfg.Headers = mergeHeaders(cfg.Headers, opts.Headers)
		mergeValues(cfg.Params, opts.Params)
	}

	var defaultRetry, optRetry *RetryConfig
	if defaults != nil {
		defaultRetry = defaults.Retry
	}
	if opts != nil {
		optRetry = opts.Retry
	}
	cfg.Retry = mergeRetryConfig(defaultRetry, optRetry)

	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	return cfg
}

// mergeHeaders merges src into dst, always returning an owned map. Normal
// keys overwrite; repeatable keys (Set-Cookie) accumulate.
func mergeHeaders(dst, src http.Header) http.Header {
	if dst == nil {
		dst = http.Header{}
	}
	for key, values := range src {
		canonical := http.CanonicalHeaderKey(key)
		if repeatableHeaders[canonical] {
			for _, v := range values {
				dst.Add(canonical, v)
			}
			continue
		}
		dst[canonical] = append([]string(nil), values...)
	}
	return dst
}

func mergeValues(dst, src url.Values) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
}
