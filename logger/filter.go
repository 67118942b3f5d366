package logger

import (
	"net/url"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in filtered output.
	DefaultMaskValue = "***"

	// defaultMaxDepth bounds recursion when filtering nested values.
	defaultMaxDepth = 8
)

// FilterConfig controls which field names are masked and with what value.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the
	// field name.
	SensitiveFields []string
	// MaskValue replaces sensitive values (default "***").
	MaskValue string
}

// DefaultFilterConfig returns a configuration covering common
// credential-shaped field and header names.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "key", "api_key", "apikey",
			"token", "access_token", "refresh_token",
			"auth", "authorization",
			"credential", "credentials",
			"cookie", "proxy_url",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose field names look credential-shaped.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter with the given configuration.
// A nil config selects the defaults.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// MaskValue returns the replacement string used for sensitive values.
func (f *SensitiveDataFilter) MaskValue() string {
	return f.config.MaskValue
}

// IsSensitive reports whether a field name is considered sensitive.
func (f *SensitiveDataFilter) IsSensitive(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// FilterString masks the value when the key is sensitive.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.IsSensitive(key) {
		return f.maskString(value)
	}
	return value
}

// FilterValue masks sensitive entries in a value, descending into maps
// and slices up to a bounded depth.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, defaultMaxDepth)
}

// FilterFields filters every entry of a field map.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if f.IsSensitive(key) {
		if s, ok := value.(string); ok {
			return f.maskString(s)
		}
		return f.config.MaskValue
	}
	if value == nil || depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		filtered := make(map[string]any, len(v))
		for k, elem := range v {
			filtered[k] = f.filterValue(k, elem, depth-1)
		}
		return filtered
	case map[string]string:
		filtered := make(map[string]string, len(v))
		for k, elem := range v {
			filtered[k] = f.FilterString(k, elem)
		}
		return filtered
	case map[string][]string:
		filtered := make(map[string][]string, len(v))
		for k, elems := range v {
			if f.IsSensitive(k) {
				filtered[k] = []string{f.config.MaskValue}
				continue
			}
			filtered[k] = elems
		}
		return filtered
	case []any:
		filtered := make([]any, len(v))
		for i, elem := range v {
			filtered[i] = f.filterValue(key, elem, depth-1)
		}
		return filtered
	default:
		return value
	}
}

// maskString masks a sensitive value. URLs keep their structure so hosts
// and paths remain readable while embedded passwords are hidden.
func (f *SensitiveDataFilter) maskString(value string) string {
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return f.maskURL(value)
	}
	return f.config.MaskValue
}

// maskURL hides the password component of a URL while preserving the rest.
func (f *SensitiveDataFilter) maskURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User == nil {
		return urlStr
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return urlStr
	}
	parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
	return parsed.String()
}
