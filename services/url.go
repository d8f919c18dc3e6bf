package services

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeTrendURL returns the duplicate-detection key for a post URL: query
// and fragment dropped, everything lowercased. Only absolute http(s) URLs are
// accepted.
func NormalizeTrendURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url", ErrMissingField)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return strings.ToLower(u.String()), nil
}

// DetectPlatform guesses the source platform from the host.
func DetectPlatform(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return "other"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch {
	case strings.HasSuffix(host, "tiktok.com"):
		return "tiktok"
	case strings.HasSuffix(host, "instagram.com"):
		return "instagram"
	case strings.HasSuffix(host, "youtube.com"), host == "youtu.be":
		return "youtube"
	case strings.HasSuffix(host, "twitter.com"), host == "x.com":
		return "twitter"
	case strings.HasSuffix(host, "reddit.com"):
		return "reddit"
	default:
		return "other"
	}
}
