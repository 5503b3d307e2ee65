package unleashed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no base URL is configured
const DefaultBaseURL = "https://api.unleashedsoftware.com"

// Config holds the credentials and tuning knobs of the signed API client
type Config struct {
	BaseURL        string
	APIID          string
	APIKey         string
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxAttempts    int
}

// applyDefaults fills zero-valued fields
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 8
	}
}

/// Sign computes the request signature: the canonical path+query string is
// lower-cased and HMAC-SHA256'd with the API key, base64-encoded.
func (c *Config) Sign(canonical string) string {
	mac := hmac.New(sha256.New, []byte(c.APIKey))
	mac.Write([]byte(strings.ToLower(canonical)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BuildCanonical joins path and query into the string covered by the
// signature. url.Values.Encode sorts parameters lexicographically by key, so
// the signature does not depend on the order the caller added them in.
func BuildCanonical(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
