// Package ingress renders the cloudflared configuration document: tunnel
// identity, credentials path and the ordered ingress rule list.
package ingress

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tunup/internal/hosts"
)

// CatchAllService is the service of the mandatory trailing ingress rule.
const CatchAllService = "http_status:404"

// Rule maps a public hostname to a local service. The catch-all rule has no
// hostname and matches anything not listed before it.
type Rule struct {
	Hostname string `yaml:"hostname,omitempty"`
	Service  string `yaml:"service"`
}

// Document is the cloudflared config.yml layout.
type Document struct {
	Tunnel          string `yaml:"tunnel"`
	CredentialsFile string `yaml:"credentials-file"`
	LogLevel        string `yaml:"loglevel,omitempty"`
	Ingress         []Rule `yaml:"ingress"`
}

// Build assembles the configuration document. Rules are sorted ascending by
// hostname so the output is stable across runs, and the catch-all rule is
// always appended last. credentialsFile must be the path as seen by the
// runtime that will read it, which differs between host and container
// deployments.
func Build(tunnelID, credentialsFile, logLevel string, entries map[string]hosts.Entry) (*Document, error) {
	if len(entries) == 0 {
		return nil, hosts.ErrNoValidHosts
	}

	doc := &Document{
		Tunnel:          tunnelID,
		CredentialsFile: credentialsFile,
		LogLevel:        logLevel,
		Ingress:         make([]Rule, 0, len(entries)+1),
	}

	for _, hostname := range hosts.Hostnames(entries) {
		doc.Ingress = append(doc.Ingress, Rule{
			Hostname: hostname,
			Service:  entries[hostname].Service,
		})
	}
	doc.Ingress = append(doc.Ingress, Rule{Service: CatchAllService})

	return doc, nil
}

// Write marshals the document and writes it owner-readable only.
func Write(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling ingress config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing ingress config: %w", err)
	}
	return nil
}
