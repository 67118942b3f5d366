package gaxios

import (
	"net/url"
	"strings"

	"github.com/googleapis/gaxios/logger"
)

// RedactedValue replaces credential-shaped values in error snapshots.
const RedactedValue = "[REDACTED]"

// NoRedactor disables snapshot redaction entirely.
var NoRedactor Redactor = func(_ *RequestConfig, _ *Response) {}

// redactFilter decides which header, query and form field names are
// credential-shaped. It shares the sensitive-field matching of the logging
// filter so logs and error snapshots agree on what is secret.
var redactFilter = logger.NewSensitiveDataFilter(&logger.FilterConfig{
	SensitiveFields: []string{
		"authorization", "authentication",
		"password", "secret",
		"token", "api_key", "apikey",
		"client_secret", "grant_type", "assertion",
		"cookie",
	},
	MaskValue: RedactedValue,
})

// snapshotConfig produces an owned, independent copy of the config for the
// error model. Maps are deep-copied so redaction can never mutate the live
// config carried forward for retries; retry state is carried by reference
// because the retry engine reads it through the live config, not the
// snapshot.
func snapshotConfig(cfg *RequestConfig) *RequestConfig {
	if cfg == nil {
		return nil
	}
	snap := *cfg
	snap.Headers = cfg.Headers.Clone()
	snap.Params = cloneValues(cfg.Params)
	if cfg.bodyBytes != nil {
		snap.bodyBytes = append([]byte(nil), cfg.bodyBytes...)
	}
	snap.bodyStream = nil
	snap.fetch = nil
	return &snap
}

// snapshotResponse copies the response fields the error model carries. The
// live stream is never captured; buffered bytes are copied.
func snapshotResponse(resp *Response) *Response {
	if resp == nil {
		return nil
	}
	snap := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Data:       resp.Data,
		Stats:      resp.Stats,
	}
	if resp.Bytes != nil {
		snap.Bytes = append([]byte(nil), resp.Bytes...)
	}
	return snap
}

// defaultRedactor scrubs credential-shaped headers, query parameters and
// form-encoded body fields from the snapshots. It never touches the fields
// the retry engine inspects (method, status, retry state).
func defaultRedactor(cfg *RequestConfig, resp *Response) {
	if cfg != nil {
		redactHeader(cfg.Headers)
		redactQueryValues(cfg.Params)
		redactURLQuery(cfg)
		redactFormBody(cfg)
	}
	if resp != nil {
		redactHeader(resp.Header)
	}
}

func redactHeader(h map[string][]string) {
	for key := range h {
		if redactFilter.IsSensitive(key) {
			h[key] = []string{RedactedValue}
		}
	}
}

func redactQueryValues(v url.Values) {
	for key := range v {
		if redactFilter.IsSensitive(key) {
			v[key] = []string{RedactedValue}
		}
	}
}

func redactURLQuery(cfg *RequestConfig) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.RawQuery == "" {
		return
	}
	q := u.Query()
	changed := false
	for key := range q {
		if redactFilter.IsSensitive(key) {
			q[key] = []string{RedactedValue}
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
		cfg.URL = u.String()
	}
}

// redactFormBody rewrites a form-encoded payload snapshot with sensitive
// keys masked. Other body kinds are left alone.
func redactFormBody(cfg *RequestConfig) {
	if cfg.bodyBytes == nil {
		return
	}
	ct := strings.ToLower(cfg.Headers.Get("Content-Type"))
	if !strings.Contains(ct, "application/x-www-form-urlencoded") {
		return
	}
	form, err := url.ParseQuery(string(cfg.bodyBytes))
	if err != nil {
		return
	}
	redactQueryValues(form)
	cfg.bodyBytes = []byte(form.Encode())
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	cloned := make(url.Values, len(v))
	for key, values := range v {
		cloned[key] = append([]string(nil), values...)
	}
	return cloned
}
