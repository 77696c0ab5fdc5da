package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type inspectOutput struct {
	Widget   string         `json:"widget"`
	Path     string         `json:"path"`
	Empty    bool           `json:"empty"`
	Config   map[string]any `json:"config"`
	Problems []struct {
		Code  string `json:"code"`
		Param string `json:"param"`
	} `json:"problems"`
}

func writeEnvFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	require.Equal(t, 0, code)
	require.Equal(t, "viewer dev (commit: unknown, built: unknown)\n", stdout)
}

func TestInspectSTL(t *testing.T) {
	envFile := writeEnvFile(t, "")
	code, stdout, stderr := runCLI(t, "inspect", "--env-file", envFile, "/view_stl?stl_url=http://x/y.stl&shadows=TRUE")
	require.Equal(t, 0, code, stderr)

	var out inspectOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "stl", out.Widget)
	require.Equal(t, "/view_stl", out.Path)
	require.False(t, out.Empty)
	require.Equal(t, "http://x/y.stl", out.Config["url"])
	require.Equal(t, true, out.Config["shadows"])
	require.Empty(t, out.Problems)
}

func TestInspectGCodeWithProblems(t *testing.T) {
	envFile := writeEnvFile(t, "")
	code, stdout, stderr := runCLI(t, "inspect", "--env-file", envFile, "/view_gcode/")
	require.Equal(t, 0, code, stderr)

	var out inspectOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "gcode", out.Widget)
	require.True(t, out.Empty)
	require.Len(t, out.Problems, 1)
	require.Equal(t, "missing_required_parameter", out.Problems[0].Code)
	require.Equal(t, "gcode_url", out.Problems[0].Param)
	require.Contains(t, stderr, "viewer config degraded")
}

func TestInspectUsesStorageConfig(t *testing.T) {
	envFile := writeEnvFile(t, "VIEWER_STORAGE_ALLOWED_BUCKETS=iforge-prints\n")

	code, stdout, stderr := runCLI(t, "inspect", "--env-file", envFile, "/view_stl?stl_url=gs://iforge-prints/jobs/7.stl")
	require.Equal(t, 0, code, stderr)
	var out inspectOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "https://storage.googleapis.com/iforge-prints/jobs/7.stl", out.Config["url"])

	code, stdout, stderr = runCLI(t, "inspect", "--env-file", envFile, "/view_stl?stl_url=gs://other/jobs/7.stl")
	require.Equal(t, 0, code, stderr)
	out = inspectOutput{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.True(t, out.Empty)
	require.Equal(t, "unresolvable_resource", out.Problems[0].Code)
}

func TestInspectUnknownPath(t *testing.T) {
	code, stdout, stderr := runCLI(t, "inspect", "--env-file", writeEnvFile(t, ""), "/view_obj?obj_url=a")
	require.Equal(t, 1, code)
	require.Empty(t, stdout)
	require.Equal(t, "viewer: no viewer page at \"/view_obj\"\n", stderr)
}

func TestInspectInvalidConfig(t *testing.T) {
	envFile := writeEnvFile(t, "VIEWER_STORAGE_URL_EXPIRY=1h\n")
	code, _, stderr := runCLI(t, "inspect", "--env-file", envFile, "/view_stl?stl_url=/a.stl")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "invalid configuration")
	require.Contains(t, stderr, "Storage.URLExpiry")
}

func TestUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unknown command")
}
