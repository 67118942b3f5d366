package gaxios

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// preparedRequest is validated after merge and URL resolution. The url tag
// requires an absolute URL, so a missing or unresolvable target fails here
// before any network activity.
type preparedRequest struct {
	URL    string `validate:"required,url"`
	Method string `validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS TRACE"`
}

// prepare turns per-call options merged over instance defaults into a
// fully-resolved, dispatch-ready config: absolute URL with merged query
// parameters, owned header map, derived body, selected agent and resolved
// transport function.
func (c *Client) prepare(opts *RequestConfig) (*RequestConfig, error) {
	cfg := mergeConfig(c.defaults, opts)

	if err := resolveURL(cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(preparedRequest{URL: cfg.URL, Method: cfg.Method}); err != nil {
		return nil, newError(ValidationError, fmt.Sprintf("invalid request: %v", err), err, cfg, nil)
	}

	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, newError(ValidationError, fmt.Sprintf("invalid url %q", cfg.URL), err, cfg, nil)
	}

	if err := deriveBody(cfg); err != nil {
		return nil, newError(ValidationError, "body serialization failed", err, cfg, nil)
	}

	if cfg.Headers.Get("Accept") == "" && cfg.ResponseType == ResponseTypeJSON {
		cfg.Headers.Set("Accept", "application/json")
	}

	if cfg.ValidateStatus == nil {
		cfg.ValidateStatus = IsSuccessStatus
	}

	agent, err := c.resolveAgent(cfg, target)
	if err != nil {
		return nil, newError(ValidationError, "agent resolution failed", err, cfg, nil)
	}
	cfg.agent = agent

	cfg.fetch = cfg.Fetcher
	if cfg.fetch == nil {
		cfg.fetch = c.defaultFetcher(cfg)
	}
	return cfg, nil
}

// resolveURL resolves a relative URL against the base URL and appends the
// merged query parameters. Params coexist with any query string already on
// the URL; both are present in the final request.
func resolveURL(cfg *RequestConfig) error {
	if cfg.BaseURL != "" && cfg.URL != "" {
		parsed, err := url.Parse(cfg.URL)
		if err == nil && !parsed.IsAbs() {
			base, err := url.Parse(cfg.BaseURL)
			if err != nil {
				return newError(ValidationError, fmt.Sprintf("invalid base url %q", cfg.BaseURL), err, cfg, nil)
			}
			cfg.URL = base.ResolveReference(parsed).String()
		}
	}

	if len(cfg.Params) == 0 {
		return nil
	}
	var query string
	if cfg.ParamsSerializer != nil {
		query = strings.TrimPrefix(cfg.ParamsSerializer(cfg.Params), "?")
	} else {
		query = cfg.Params.Encode()
	}
	if query == "" {
		return nil
	}
	sep := "?"
	if strings.Contains(cfg.URL, "?") {
		sep = "&"
	}
	cfg.URL += sep + query
	return nil
}

// deriveBody materializes the request payload and sets content negotiation
// headers. Multipart parts override everything else and get a fresh
// boundary; JSON and form bodies set their content type only when none is
// present; body-native kinds pass through unchanged.
func deriveBody(cfg *RequestConfig) error {
	if cfg.Body == nil {
		return nil
	}

	if mp, ok := cfg.Body.(*multipartBody); ok {
		stamped := &multipartBody{parts: mp.parts, boundary: newBoundary()}
		cfg.Body = stamped
		cfg.Headers.Set("Content-Type", stamped.contentType())
		_, cfg.bodyStream, _ = stamped.encode()
		return nil
	}

	data, stream, err := cfg.Body.encode()
	if err != nil {
		return err
	}
	cfg.bodyBytes = data
	cfg.bodyStream = stream

	if ct := cfg.Body.contentType(); ct != "" && cfg.Headers.Get("Content-Type") == "" {
		cfg.Headers.Set("Content-Type", ct)
	}
	return nil
}

// defaultFetcher builds the net/http-backed transport function for a
// prepared config. The per-attempt timeout is enforced by the dispatcher
// through the request context, not here.
func (c *Client) defaultFetcher(cfg *RequestConfig) Fetcher {
	client := &http.Client{Transport: cfg.agent}
	if client.Transport == nil {
		client.Transport = c.direct
	}
	if cfg.MaxRedirects > 0 {
		maxRedirects := cfg.MaxRedirects
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}
	return client.Do
}
