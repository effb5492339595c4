package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	// Arrange
	src := `
log_level  = "debug"
log_format = "json"

server {
  listen = ":9090"
}

database {
  url = env.DATABASE_URL
}

events {
  socketio_url = "http://hub:3000"
  namespace    = "/runs"
}

runs {
  flush_timeout  = "250ms"
  max_concurrent = 4
}
`
	env := map[string]string{"DATABASE_URL": "postgres://localhost/flowgrid"}

	// Act
	f, err := Parse([]byte(src), "flowgrid.hcl", env)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "debug", f.LogLevel)
	assert.Equal(t, "json", f.LogFormat)
	require.NotNil(t, f.Server)
	assert.Equal(t, ":9090", f.Server.Listen)
	require.NotNil(t, f.Database)
	assert.Equal(t, "postgres://localhost/flowgrid", f.Database.URL)
	require.NotNil(t, f.Events)
	assert.Equal(t, "/runs", f.Events.Namespace)
	assert.Equal(t, 250*time.Millisecond, f.FlushTimeout())
	assert.Equal(t, 4, f.Runs.MaxConcurrent)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil, "empty.hcl", nil)

	require.NoError(t, err)
	assert.Nil(t, f.Server)
	assert.Zero(t, f.FlushTimeout())
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "syntax", src: `server {`, wantErr: "failed to parse"},
		{name: "unknown attribute", src: `colour = "red"`, wantErr: "failed to decode"},
		{name: "missing env var", src: "database {\n  url = env.NOPE\n}", wantErr: "failed to decode"},
		{name: "bad level", src: `log_level = "loud"`, wantErr: "log_level must be"},
		{name: "bad format", src: `log_format = "xml"`, wantErr: "log_format must be"},
		{name: "bad duration", src: "runs {\n  flush_timeout = \"soon\"\n}", wantErr: "runs.flush_timeout"},
		{name: "negative concurrency", src: "runs {\n  max_concurrent = -1\n}", wantErr: "max_concurrent"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "bad.hcl", map[string]string{"HOME": "/root"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowgrid.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "warn"`), 0600))

	f, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "warn", f.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.ErrorContains(t, err, "reading config file")
}
