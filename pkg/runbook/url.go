package runbook

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// githubBlobPattern matches GitHub blob URLs.
// Format: https://github.com/{owner}/{repo}/blob/{ref}/{path...}
var githubBlobPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)

// ConvertToRawURL converts a GitHub blob URL to a raw content URL. The ref
// may be a branch, tag or commit. Returns the URL unchanged if already raw
// or not a recognized GitHub URL.
func ConvertToRawURL(githubURL string) string {
	parsed, err := url.Parse(githubURL)
	if err != nil {
		return githubURL
	}

	// Raw URLs and other hosts pass through.
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return githubURL
	}

	m := githubBlobPattern.FindStringSubmatch(parsed.Path)
	if m == nil {
		return githubURL
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", m[1], m[2], m[3], m[4])
}

// ValidateRunbookURL checks that the URL uses an allowed scheme and domain.
func ValidateRunbookURL(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q: only http and https allowed", parsed.Scheme)
	}

	if len(allowedDomains) == 0 {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}
	return fmt.Errorf("domain %q not in allowed list", host)
}
