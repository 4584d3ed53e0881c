package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var ErrNotDataURI = errors.New("not a base64 image data URI")

var dataURIPattern = regexp.MustCompile(`^data:(image/\w+);base64,(.+)$`)

// IsDataURI reports whether s looks like a data URI of any kind.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI splits a base64 image data URI into its MIME type and raw
// base64 payload.
func ParseDataURI(uri string) (mimeType, b64 string, err error) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", ErrNotDataURI
	}
	return m[1], m[2], nil
}

// DecodeDataURI returns the image bytes and MIME type of a base64 image
// data URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	mimeType, b64, err := ParseDataURI(uri)
	if err != nil {
		return nil, "", err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URI payload: %w", err)
	}
	return data, mimeType, nil
}

// EncodeDataURI wraps raw image bytes into a base64 data URI.
func EncodeDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MIMETypeFromPath guesses an image MIME type from a file extension.
func MIMETypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// ExtensionFromMIME returns a file extension for common image MIME types.
func ExtensionFromMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
