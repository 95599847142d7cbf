// Package testutil provides a harness that runs the full application against
// HCL files written to a temporary directory.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/opgraph/internal/app"
	"github.com/specialistvlad/opgraph/internal/hcl"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Output    string // rewritten graph as HCL
	LogOutput string
	Err       error
	App       *app.App
	Dir       string // temporary root holding the test files
}

// RunIntegrationTest provides a standardized harness for running integration
// tests using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, opts...)
}

// RunIntegrationTestWithContext writes files below a temporary root, points
// the app at its graph/ and rules/ subdirectories and runs it. Options may
// adjust the configuration; paths in it are relative to the temporary root.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()

	// 1. Create a temporary root directory for the test.
	tmpDir := t.TempDir()
	graphDir := filepath.Join(tmpDir, "graph")
	rulesDir := filepath.Join(tmpDir, "rules")
	require.NoError(t, os.Mkdir(graphDir, 0o755))
	require.NoError(t, os.Mkdir(rulesDir, 0o755))

	// 2. Write all HCL files. Relative names such as "rules/fuse.hcl"
	//    create their subdirectories within the root.
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	// 3. Configure the app to use the dedicated subdirectories.
	appConfig := &app.Config{
		GraphPaths: []string{graphDir},
		RulePaths:  []string{rulesDir},
		LogLevel:   "debug",
		LogFormat:  "text",
	}
	for _, opt := range opts {
		opt(appConfig)
	}
	if appConfig.OutputPath != "" && appConfig.OutputPath != "-" {
		appConfig.OutputPath = filepath.Join(tmpDir, appConfig.OutputPath)
	}
	if appConfig.MetricsPath != "" {
		appConfig.MetricsPath = filepath.Join(tmpDir, appConfig.MetricsPath)
	}

	out := &SafeBuffer{}
	logBuffer := &SafeBuffer{}
	testApp := app.NewApp(out, logBuffer, appConfig, hcl.NewLoader(), hcl.NewWriter())
	runErr := testApp.Run(ctx)

	if os.Getenv("OPGRAPH_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		Output:    out.String(),
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Dir:       tmpDir,
	}
}
