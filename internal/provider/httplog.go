package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var redactedHeaders = map[string]bool{
	"authorization":  true,
	"x-goog-api-key": true,
}

// ProxyTarget routes a request through the relay when one is configured.
// With no proxy the target is fetched directly.
func ProxyTarget(proxyURL, target string) string {
	if proxyURL == "" {
		return target
	}
	sep := "?"
	if strings.Contains(proxyURL, "?") {
		sep = "&"
	}
	return proxyURL + sep + "url=" + url.QueryEscape(target)
}

// LogRequest writes the outgoing request to stderr when verbose mode is
// on. Credentials are never written: sensitive headers are redacted and
// any key query parameter is stripped from the URL.
func (c *Config) LogRequest(method, rawURL string, headers http.Header, body []byte) {
	if !c.Verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- REQUEST ---")
	fmt.Fprintf(os.Stderr, "%s %s\n", method, RedactURL(rawURL))
	fmt.Fprintln(os.Stderr, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			if redactedHeaders[strings.ToLower(key)] {
				value = "[REDACTED]"
			}
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(os.Stderr, "Body:")
		fmt.Fprintf(os.Stderr, "  %s\n", prettyBody(truncateImagePayloads(body)))
	}
	fmt.Fprintln(os.Stderr, "---------------")
}

// LogResponse writes the upstream response to stderr when verbose mode is
// on, truncating inline base64 image payloads for readability.
func (c *Config) LogResponse(statusCode int, body []byte) {
	if !c.Verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- RESPONSE ---")
	fmt.Fprintf(os.Stderr, "Status: %d\n", statusCode)
	if len(body) > 0 {
		fmt.Fprintln(os.Stderr, "Body:")
		fmt.Fprintf(os.Stderr, "  %s\n", prettyBody(truncateImagePayloads(body)))
	}
	fmt.Fprintln(os.Stderr, "----------------")
}

// RedactURL strips credential-bearing query parameters from a URL.
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	if q.Has("key") {
		q.Set("key", "[REDACTED]")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

func prettyBody(body []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "  ", "  "); err != nil {
		return string(body)
	}
	return pretty.String()
}

const maxInlinePayload = 100

// truncateImagePayloads shortens long base64 strings anywhere in a JSON
// document so verbose logs stay readable.
func truncateImagePayloads(body []byte) []byte {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncated := truncateValue(data)
	result, err := json.Marshal(truncated)
	if err != nil {
		return body
	}
	return result
}

func truncateValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if len(val) > 1000 && looksLikeBase64(val) {
			return val[:maxInlinePayload] + "... [truncated]"
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = truncateValue(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = truncateValue(item)
		}
		return val
	default:
		return v
	}
}

func looksLikeBase64(s string) bool {
	probe := s
	if strings.HasPrefix(probe, "data:") {
		return true
	}
	if len(probe) > 256 {
		probe = probe[:256]
	}
	for _, r := range probe {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '/' || r == '=') {
			return false
		}
	}
	return true
}
