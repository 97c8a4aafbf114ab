package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/aotgraph/internal/compilation"
	"github.com/specialistvlad/aotgraph/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const input = `
module "App" {
  compile = true

  type "App" "Program" {
    method "Main" {
      il {
        call {
          method = "App.Program::Helper"
        }
      }
    }
    method "Helper" {
      il {}
    }
  }
}

root {
  method = "App.Program::Main"
}
`

func writeInput(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	valid := Config{InputPath: "in.hcl", OutputPath: "out.r2r", Parallelism: 1}

	testCases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no input", func(c *Config) { c.InputPath = "" }, "InputPath"},
		{"no output", func(c *Config) { c.OutputPath = "" }, "OutputPath"},
		{"no workers", func(c *Config) { c.Parallelism = 0 }, "parallelism"},
		{"neo4j without password", func(c *Config) { c.Neo4jURI = "neo4j://localhost" }, "password"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			got, err := NewConfig(cfg)
			if tc.want == "" {
				require.NoError(t, err)
				assert.Equal(t, cfg, *got)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestApp_Run(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		InputPath:         writeInput(t, input),
		OutputPath:        filepath.Join(dir, "app.r2r"),
		Parallelism:       2,
		MapFile:           true,
		DependencyLogPath: filepath.Join(dir, "deps.dgml"),
		LogFormat:         "text",
	}
	a, logs := SetupAppTest(t, cfg)

	require.NoError(t, a.Run(context.Background()))

	for _, path := range []string{cfg.OutputPath, cfg.OutputPath + ".map", cfg.DependencyLogPath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
	require.NotNil(t, a.Compilation())
	status := a.Compilation().Status()
	assert.Equal(t, compilation.PhaseDone, status.Phase)
	assert.Equal(t, int64(2), status.Results["compiled"])
	assert.Contains(t, logs.String(), "Compilation finished.")
}

func TestApp_Run_DirectoryInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.hcl"), []byte(input), 0o644))

	cfg := &Config{
		InputPath:   src,
		OutputPath:  filepath.Join(dir, "app.r2r"),
		Parallelism: 2,
	}
	a, _ := SetupAppTest(t, cfg)
	require.NoError(t, a.Run(context.Background()))

	image, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(image, []byte(input)), "description is embedded as the input component")
	assert.Equal(t, int64(2), a.Compilation().Status().Results["compiled"])
}

func TestApp_Run_WritesTrace(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		InputPath:   writeInput(t, input),
		OutputPath:  filepath.Join(dir, "app.r2r"),
		Parallelism: 1,
		TracePath:   filepath.Join(dir, "spans.json"),
	}
	a, _ := SetupAppTest(t, cfg)
	require.NoError(t, a.Run(context.Background()))

	spans, err := os.ReadFile(cfg.TracePath)
	require.NoError(t, err)
	for _, name := range []string{telemetry.SpanComputeGraph, telemetry.SpanCompileBatch, telemetry.SpanEmitObject} {
		assert.Contains(t, string(spans), `"Name":"`+name+`"`)
	}
}

func TestApp_Run_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{"bad input", `module "App" {`, "failed to load input"},
		{"unresolved root", `module "App" {
  compile = true
}
root {
  method = "App.Missing::M"
}`, "failed to load input"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				InputPath:   writeInput(t, tc.src),
				OutputPath:  filepath.Join(t.TempDir(), "app.r2r"),
				Parallelism: 1,
			}
			a, _ := SetupAppTest(t, cfg)
			err := a.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Nil(t, a.Compilation())
		})
	}
}

func TestApp_StatusEndpoint(t *testing.T) {
	cfg := &Config{
		InputPath:   writeInput(t, input),
		OutputPath:  filepath.Join(t.TempDir(), "app.r2r"),
		Parallelism: 1,
	}
	a, _ := SetupAppTest(t, cfg)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	get := func() compilation.Status {
		resp, err := http.Get(srv.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var s compilation.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
		return s
	}

	assert.Equal(t, compilation.Phase("loading"), get().Phase)

	require.NoError(t, a.Run(context.Background()))
	s := get()
	assert.Equal(t, compilation.PhaseDone, s.Phase)
	assert.Positive(t, s.Marked)
	assert.Equal(t, int64(2), s.Results["compiled"])

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
