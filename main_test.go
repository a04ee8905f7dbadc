package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/martin-sucha/proxy-listing/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"proxy-listing"}, args...))
	return out.String(), err
}

func TestList(t *testing.T) {
	proxySites := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(proxySites, "nmos.conf"),
		[]byte("<Location /x-nmos/query/>\n</Location>\n<Location /x-nmos/node/>\n</Location>\n"), 0o644))
	aliasSites := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(aliasSites, "docs.conf"),
		[]byte("Alias /docs/ /srv/docs/\n"), 0o644))
	envFile := filepath.Join(t.TempDir(), "missing.env")

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "root text",
			args:     []string{"list", "--env-file", envFile, "--alias-sites", aliasSites},
			expected: "docs/\nx-ipstudio/\nx-nmos/\n",
		},
		{
			name:     "nmos json",
			args:     []string{"list", "--env-file", envFile, "--proxy-sites", proxySites, "--format", "json", "x-nmos"},
			expected: "[\n  \"node/\",\n  \"query/\"\n]\n",
		},
		{
			name:     "ipstudio yaml",
			args:     []string{"list", "--env-file", envFile, "--proxy-sites", proxySites, "--format", "yaml", "/x-ipstudio/"},
			expected: "[]\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := runApp(t, test.args...)
			require.NoError(t, err)
			assert.Equal(t, test.expected, out)
		})
	}
}

func TestListErrors(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "missing.env")
	_, err := runApp(t, "list", "--env-file", envFile, "x-unknown")
	assert.EqualError(t, err, `unknown listing "x-unknown"`)

	_, err = runApp(t, "list", "--env-file", envFile, "--format", "xml", "root")
	assert.EqualError(t, err, `unknown format "xml"`)
}

func TestWriteListingYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, "yaml", listing.New("x-nmos/", "x-ipstudio/")))
	assert.Equal(t, "- x-ipstudio/\n- x-nmos/\n", buf.String())
}
