package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/document/service"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_ENGINE", "bolt")
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--path", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestPutGetHasRemove(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, "report.txt", "Calculus I, Physics II")
	want := document.IDFor("Calculus I, Physics II").String()

	out, err := run(t, dir, "put", file)
	require.NoError(t, err)
	require.Equal(t, want, strings.TrimSpace(out))

	out, err = run(t, dir, "get", want)
	require.NoError(t, err)
	require.Equal(t, "Calculus I, Physics II", out)

	out, err = run(t, dir, "get", "--json", want)
	require.NoError(t, err)
	var rec map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Equal(t, want, rec["id"])
	require.NotEmpty(t, rec["created"])

	out, err = run(t, dir, "has", want)
	require.NoError(t, err)
	require.Equal(t, "true", strings.TrimSpace(out))

	_, err = run(t, dir, "rm", want)
	require.NoError(t, err)

	out, err = run(t, dir, "has", want)
	require.NoError(t, err)
	require.Equal(t, "false", strings.TrimSpace(out))

	_, err = run(t, dir, "rm", want)
	require.ErrorIs(t, err, service.ErrNotFound)
	_, err = run(t, dir, "get", want)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestIDDoesNotNeedStore(t *testing.T) {
	file := writeFile(t, "report.txt", "MATH 241")
	out, err := run(t, filepath.Join(t.TempDir(), "never-created"), "id", file)
	require.NoError(t, err)
	require.Equal(t, document.IDFor("MATH 241").String(), strings.TrimSpace(out))
}

func TestRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "get", "not-hex")
	require.ErrorIs(t, err, document.ErrInvalidID)

	_, err = run(t, dir, "put", filepath.Join(dir, "missing.txt"))
	require.Error(t, err)

	_, err = run(t, dir, "put", "--engine", "leveldb", writeFile(t, "a.txt", "a"))
	require.Error(t, err)
}

func TestRawPDFIsHashedAsBytes(t *testing.T) {
	file := writeFile(t, "report.pdf", "not really a pdf")
	out, err := run(t, t.TempDir(), "id", "--raw", file)
	require.NoError(t, err)
	require.Equal(t, document.IDFor("not really a pdf").String(), strings.TrimSpace(out))

	_, err = run(t, t.TempDir(), "id", file)
	require.Error(t, err)
}
