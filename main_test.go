// main_test.go - Tests for command line wiring

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCommandQueue(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	q, err := openCommandQueue("software")
	require.NoError(t, err)
	assert.Equal(t, "software", q.Name())

	cfg = DefaultConfig()
	cfg.Vulkan.Enabled = false
	q, err = openCommandQueue("auto")
	require.NoError(t, err)
	assert.Equal(t, "software", q.Name())

	_, err = openCommandQueue("metal")
	assert.ErrorContains(t, err, "unknown backend")
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	saved := cfg
	t.Cleanup(func() {
		cfg = saved
		configFile, logLevelFlag = "", ""
		initLoggerWithWriter(os.Stderr, "INFO", "text")
	})

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Features(t *testing.T) {
	t.Setenv("RSX_VIDEO_IMMEDIATE_TRANSFER_SIZE", "2048")

	out, err := executeRoot(t, "features")
	require.NoError(t, err)
	assert.Contains(t, out, "immediate transfer: 2048 bytes")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0644))

	_, err := executeRoot(t, "--config", path, "features")
	assert.ErrorContains(t, err, "logging.format")
}

func TestRootCmd_RunSoftware(t *testing.T) {
	t.Setenv("RSX_VIDEO_IMMEDIATE_TRANSFER_SIZE", "1024")

	_, err := executeRoot(t, "run", "--backend", "software", "--frames", "2",
		"--draws", "8", "--max-upload", "8192", "--status-interval", "0")
	require.NoError(t, err)
}

func TestRootCmd_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		local a = alloc(4096)
		copy_vector(a, {1, 2, 3, 4})
		sync()
		assert(peek(a + 3) == 4)
	`), 0644))

	_, err := executeRoot(t, "replay", "--memory", "65536", path)
	require.NoError(t, err)
}
