package utils

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidInput marks malformed caller input
var ErrInvalidInput = errors.New("invalid input")

var (
	md5Regex         = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeNameRegex  = regexp.MustCompile(`[^\p{L}\p{N}._\-]`)
)

// ValidateMD5 validates a hex encoded md5 digest
func ValidateMD5(sum string) error {
	if !md5Regex.MatchString(sum) {
		return fmt.Errorf("%w: invalid md5 digest %q", ErrInvalidInput, sum)
	}
	return nil
}

// ValidateDownloadURL accepts only absolute http(s) URLs
func ValidateDownloadURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url has no host: %s", ErrInvalidInput, raw)
	}
	return u, nil
}

// SanitizeString removes potentially harmful characters
func SanitizeString(s string) string {
	return controlCharRegex.ReplaceAllString(s, "")
}

// SanitizeFilename returns a name that is safe to join onto a directory.
// Separators and parent references are dropped, whitespace becomes "_",
// and anything that is not a letter, digit, dot, dash or underscore is removed.
func SanitizeFilename(name string) string {
	name = SanitizeString(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameRegex.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")

	if name == "" || name == "/" {
		return "file"
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_") {
		name = strings.TrimLeft(name, "-_")
		if name == "" {
			return "file"
		}
	}
	return name
}
