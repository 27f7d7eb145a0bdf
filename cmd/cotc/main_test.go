package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoMainCompilesSampleProgram(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "add.o")
	var stdout, stderr bytes.Buffer

	code := doMain([]string{"-o", out, "-verify"}, &stdout, &stderr)

	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.FileExists(t, out)
	require.Contains(t, stdout.String(), out)
}

func TestDoMainReportsBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := doMain([]string{"-nonexistent-flag"}, &stdout, &stderr)

	require.Equal(t, 1, code)
}
