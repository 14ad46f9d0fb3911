// Package hosts normalizes the HOSTS and SUBDOMAINS input grammars into a
// mapping from public hostname to local service address.
package hosts

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNoValidHosts is returned when parsing produced zero usable entries.
// An ingress configuration with no real routes is not deployable.
var ErrNoValidHosts = errors.New("no valid host entries")

// Entry maps an externally visible hostname to a locally reachable service.
type Entry struct {
	Hostname string
	Service  string
}

var (
	// Labels of alphanumerics/hyphens, final label at least 2 alphabetic chars.
	hostnameRegexp = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	labelRegexp    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)
	httpRegexp     = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+(:\d+)?$`)
	tcpRegexp      = regexp.MustCompile(`^tcp://[a-zA-Z0-9.-]+:\d+$`)
)

// ValidHostname reports whether s is an acceptable DNS name for an ingress rule.
func ValidHostname(s string) bool {
	return hostnameRegexp.MatchString(s)
}

// ValidService reports whether s is an acceptable service address.
// Accepted forms: http(s)://host[:port], tcp://host:port, unix:/path.
func ValidService(s string) bool {
	if strings.HasPrefix(s, "unix:") {
		return strings.HasPrefix(strings.TrimPrefix(s, "unix:"), "/")
	}
	return httpRegexp.MatchString(s) || tcpRegexp.MatchString(s)
}

// ParseHosts parses the HOSTS grammar: a comma-separated list of
// hostname:service pairs. The service may itself contain colons
// (http://host:port), so each token is split on the first colon only.
// Invalid entries are skipped with a warning; duplicates resolve to the
// last occurrence.
func ParseHosts(raw string) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		hostname, service, found := strings.Cut(token, ":")
		if !found {
			log.Warn("Skipping host entry without a service", "entry", token)
			continue
		}
		hostname = strings.TrimSpace(hostname)
		service = strings.TrimSpace(service)

		if !ValidHostname(hostname) {
			log.Warn("Skipping host entry with invalid hostname", "hostname", hostname)
			continue
		}
		if !ValidService(service) {
			log.Warn("Skipping host entry with invalid service address", "hostname", hostname, "service", service)
			continue
		}

		entries[hostname] = Entry{Hostname: hostname, Service: service}
	}

	if len(entries) == 0 {
		return nil, ErrNoValidHosts
	}
	return entries, nil
}

// ParseSubdomains parses the SUBDOMAINS grammar: a comma-separated list of
// label or label:port tokens, each combined with domain to form label.domain.
// A missing port defaults to 80; a malformed port falls back to 80 with a
// warning rather than failing the entry.
func ParseSubdomains(raw, domain string) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	domain = strings.TrimSpace(domain)

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		label, portStr, hasPort := strings.Cut(token, ":")
		label = strings.TrimSpace(label)

		port := 80
		if hasPort {
			p, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil || p < 1 || p > 65535 {
				log.Warn("Invalid port, defaulting to 80", "subdomain", label, "port", portStr)
			} else {
				port = p
			}
		}

		if !labelRegexp.MatchString(label) {
			log.Warn("Skipping invalid subdomain label", "label", label)
			continue
		}

		hostname := label + "." + domain
		if !ValidHostname(hostname) {
			log.Warn("Skipping invalid hostname", "hostname", hostname)
			continue
		}

		entries[hostname] = Entry{
			Hostname: hostname,
			Service:  fmt.Sprintf("http://localhost:%d", port),
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoValidHosts
	}
	return entries, nil
}

// Hostnames returns the hostnames of the mapping sorted ascending, so that
// generated configuration is deterministic across runs.
func Hostnames(entries map[string]Entry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
