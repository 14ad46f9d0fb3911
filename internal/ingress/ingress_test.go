package ingress

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tunup/internal/hosts"
)

func sampleEntries() map[string]hosts.Entry {
	return map[string]hosts.Entry{
		"web.example.com": {Hostname: "web.example.com", Service: "http://localhost:3000"},
		"api.example.com": {Hostname: "api.example.com", Service: "http://localhost:80"},
	}
}

func TestBuild_CatchAllAlwaysLast(t *testing.T) {
	doc, err := Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/etc/cloudflared/creds.json", "", sampleEntries())
	require.NoError(t, err)

	require.Len(t, doc.Ingress, 3)
	last := doc.Ingress[len(doc.Ingress)-1]
	assert.Empty(t, last.Hostname)
	assert.Equal(t, CatchAllService, last.Service)

	catchAlls := 0
	for _, rule := range doc.Ingress {
		if rule.Service == CatchAllService {
			catchAlls++
		}
	}
	assert.Equal(t, 1, catchAlls)
}

func TestBuild_RulesSortedByHostname(t *testing.T) {
	doc, err := Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/creds.json", "", sampleEntries())
	require.NoError(t, err)

	assert.Equal(t, "api.example.com", doc.Ingress[0].Hostname)
	assert.Equal(t, "http://localhost:80", doc.Ingress[0].Service)
	assert.Equal(t, "web.example.com", doc.Ingress[1].Hostname)
	assert.Equal(t, "http://localhost:3000", doc.Ingress[1].Service)
}

func TestBuild_EmptyEntriesRejected(t *testing.T) {
	_, err := Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/creds.json", "", nil)
	assert.ErrorIs(t, err, hosts.ErrNoValidHosts)

	_, err = Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/creds.json", "", map[string]hosts.Entry{})
	assert.ErrorIs(t, err, hosts.ErrNoValidHosts)
}

func TestBuild_DocumentFields(t *testing.T) {
	doc, err := Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/etc/cloudflared/creds.json", "debug", sampleEntries())
	require.NoError(t, err)

	assert.Equal(t, "7ff05a2f-6456-4f64-a061-bd62c53be4a0", doc.Tunnel)
	assert.Equal(t, "/etc/cloudflared/creds.json", doc.CredentialsFile)
	assert.Equal(t, "debug", doc.LogLevel)
}

func TestWrite_RoundTripAndPermissions(t *testing.T) {
	doc, err := Build("7ff05a2f-6456-4f64-a061-bd62c53be4a0", "/creds.json", "", sampleEntries())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cloudflared", "config.yml")
	require.NoError(t, Write(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Document
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, doc.Tunnel, loaded.Tunnel)
	assert.Equal(t, doc.CredentialsFile, loaded.CredentialsFile)
	require.Len(t, loaded.Ingress, 3)
	assert.Equal(t, CatchAllService, loaded.Ingress[2].Service)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}
