// Package security validates relay targets and output filenames.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// allowedOrigins lists the upstream APIs the relay will forward to.
	allowedOrigins = []string{
		"https://api.replicate.com",
		"https://generativelanguage.googleapis.com",
	}

	ErrPrivateIP     = fmt.Errorf("URL resolves to private IP address")
	ErrUntrustedHost = fmt.Errorf("target URL is not on the allow-list")
	ErrInvalidScheme = fmt.Errorf("only HTTPS URLs are allowed")
)

// ValidateProxyTarget checks that a relay target points at a whitelisted
// origin and cannot be used to reach internal addresses.
func ValidateProxyTarget(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	if !isAllowedOrigin(rawURL) {
		return ErrUntrustedHost
	}

	return validateHostIP(parsed.Hostname())
}

func isAllowedOrigin(rawURL string) bool {
	for _, origin := range allowedOrigins {
		if strings.HasPrefix(rawURL, origin+"/") || rawURL == origin {
			return true
		}
	}
	return false
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}

	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0: // 0.0.0.0/8
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // 100.64.0.0/10 (CGNAT)
			return true
		case ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 0: // 192.0.0.0/24
			return true
		case ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 2: // 192.0.2.0/24 (TEST-NET-1)
			return true
		case ip4[0] == 198 && ip4[1] == 51 && ip4[2] == 100: // 198.51.100.0/24 (TEST-NET-2)
			return true
		case ip4[0] == 203 && ip4[1] == 0 && ip4[2] == 113: // 203.0.113.0/24 (TEST-NET-3)
			return true
		case ip4[0] >= 224 && ip4[0] <= 239: // 224.0.0.0/4 (Multicast)
			return true
		case ip4[0] >= 240: // 240.0.0.0/4 (Reserved)
			return true
		}
	}

	return false
}
