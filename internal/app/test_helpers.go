package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/aotgraph/internal/testutil"
)

// SetupAppTest creates an App logging at debug level into a buffer. The log is
// dumped when AOTGRAPH_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg)

	t.Cleanup(func() {
		if os.Getenv("AOTGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}
