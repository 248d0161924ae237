package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
)

// SetupAppTest creates an App over a temporary directory with a debug
// logger writing into the returned buffer.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	root := t.TempDir()
	cfg.DatabasePath = filepath.Join(root, "tensorgrid.db")
	cfg.ArtifactDir = filepath.Join(root, "models")
	cfg.DataDir = filepath.Join(root, "data")
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.LogLevel = "debug"

	logBuffer := &testutil.SafeBuffer{}
	testApp := NewApp(logBuffer, cfg, modules...)

	t.Cleanup(func() {
		testApp.Close()
		if os.Getenv("TENSORGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
