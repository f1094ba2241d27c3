package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/docstore/internal/config"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	fn := filepath.Join(dir, "script.lua")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0644))
	return fn
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: docscript <script>")
}

func TestRun_TooManyArgs(t *testing.T) {
	code, _, stderr := runCLI("a.lua", "b.lua")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestRun_UnknownFlag(t *testing.T) {
	code, _, stderr := runCLI("--bogus", "a.lua")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRun_ScriptAndDump(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "test.couch")
	fn := writeScript(t, dir, fmt.Sprintf(`
local db = couch.open(%q, true)
db:save("doc1", "hello", 0)
db:save("doc2", "world", 0)
db:delete("doc2")
db:save_local("checkpoint", "42")
db:commit()
db:close()
`, dbFile))

	code, _, stderr := runCLI("--no-sync", fn)
	require.Equal(t, exitOK, code, stderr)

	code, stdout, stderr := runCLI("dump", dbFile)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "seq = 3")
	assert.Contains(t, stdout, `"doc1"`)
	assert.Contains(t, stdout, "hello")
	assert.Contains(t, stdout, "DELETED")
	assert.Contains(t, stdout, "_local/checkpoint = 42")
}

func TestRun_ScriptError(t *testing.T) {
	dir := t.TempDir()
	fn := writeScript(t, dir, fmt.Sprintf(`couch.open(%q)`, filepath.Join(dir, "missing.couch")))

	code, _, stderr := runCLI(fn)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error running script")
	assert.Contains(t, stderr, "kind=EngineError")
	assert.Contains(t, stderr, "no such file")
}

func TestRun_MissingScript(t *testing.T) {
	code, _, stderr := runCLI(filepath.Join(t.TempDir(), "nope.lua"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error running script")
}

func TestRun_DumpMissingDB(t *testing.T) {
	code, _, stderr := runCLI("dump", filepath.Join(t.TempDir(), "missing.couch"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error opening database")
}

func TestRun_InvalidConfig(t *testing.T) {
	fn := writeScript(t, t.TempDir(), "")
	code, _, stderr := runCLI("--log-format=xml", fn)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "failed to load configuration")
}

func TestSetupLogging(t *testing.T) {
	logger := logrus.New()

	setupLogging(logger, &config.Config{LogLevel: "warn", LogFormat: "text"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	setupLogging(logger, &config.Config{LogLevel: "warn", LogFormat: "text", Verbose: true})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	setupLogging(logger, &config.Config{LogLevel: "trace", LogFormat: "json", Verbose: true})
	assert.Equal(t, logrus.TraceLevel, logger.GetLevel())
}
