package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/opgraph/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		args           []string
		expectExit     bool
		expectErr      string
		expectedConfig *app.Config
		checkOutput    func(t *testing.T, output string)
	}{
		{
			name: "Happy Path with all flags",
			args: []string{
				"-graph", "/g/main.hcl",
				"--rules=/r/fuse.hcl",
				"-r", "/r/extra",
				"-out", "/o/out.hcl",
				"--metrics-file=/m/opgraph.prom",
				"--log-level=DEBUG",
				"--log-format=json",
			},
			expectedConfig: &app.Config{
				GraphPaths:  []string{"/g/main.hcl"},
				RulePaths:   []string{"/r/fuse.hcl", "/r/extra"},
				OutputPath:  "/o/out.hcl",
				MetricsPath: "/m/opgraph.prom",
				LogLevel:    "debug",
				LogFormat:   "json",
			},
		},
		{
			name: "Shorthand flag, positional paths and defaults",
			args: []string{"-g", "/short", "--validate-only", "/positional"},
			expectedConfig: &app.Config{
				GraphPaths:   []string{"/short", "/positional"},
				ValidateOnly: true,
				LogLevel:     "info",
				LogFormat:    "text",
			},
		},
		{
			name:       "Help flag triggers clean exit",
			args:       []string{"-h"},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Usage:")
			},
		},
		{
			name:       "No graph path prints usage",
			args:       []string{"-rules", "/r"},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "GRAPH_PATH")
			},
		},
		{
			name:      "Unknown flag",
			args:      []string{"--nope"},
			expectErr: "flag provided but not defined",
		},
		{
			name:      "Invalid log format",
			args:      []string{"--log-format=xml", "/g"},
			expectErr: "invalid log-format",
		},
		{
			name:      "Invalid log level",
			args:      []string{"--log-level=trace", "/g"},
			expectErr: "invalid log-level",
		},
		{
			name:      "Empty path",
			args:      []string{"-graph", ""},
			expectErr: "path cannot be empty",
		},
		{
			name:      "Output with validate-only",
			args:      []string{"-validate-only", "-out", "x.hcl", "/g"},
			expectErr: "validate-only",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			cfg, shouldExit, err := Parse(tc.args, &out)

			if tc.expectErr != "" {
				require.Error(t, err)
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, 2, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectExit, shouldExit)
			if tc.checkOutput != nil {
				tc.checkOutput(t, out.String())
			}
			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig, cfg); diff != "" {
					t.Errorf("config mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
