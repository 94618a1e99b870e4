package engine

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Valid range for HTTP request timeouts.
const (
	// MinTimeout is the minimum allowed duration for a request timeout.
	MinTimeout = 100 * time.Millisecond
	// MaxTimeout is the maximum allowed duration for a request timeout.
	MaxTimeout = 10 * time.Minute
)

// ValidateBaseURL validates and normalizes a base URL string. It requires an
// http or https scheme and a host, and strips any trailing slash.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("base URL is required")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return strings.TrimRight(parsedURL.String(), "/"), nil
}

// ValidateTimeout clamps a timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning no timeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}
