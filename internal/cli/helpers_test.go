package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kgbridge/internal/dataset"
	"github.com/roach88/kgbridge/internal/testutil"
)

// executeCommand runs the root command with args and returns stdout, stderr
// and the command error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTables writes the shared fixture tables as JSON under dir and
// returns their paths.
func writeTables(t *testing.T, dir string) (string, string) {
	t.Helper()
	entities, err := json.Marshal(testutil.EntityEntries)
	require.NoError(t, err)
	relations, err := json.Marshal(testutil.RelationEntries)
	require.NoError(t, err)
	return testutil.WriteFile(t, dir, "entities.json", string(entities)),
		testutil.WriteFile(t, dir, "relations.json", string(relations))
}

// decodeResponse decodes a JSON CLI response, re-decoding its data into
// data when non-nil.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

// readRecords decodes a converted dataset written by the convert command.
func readRecords(t *testing.T, path string) []dataset.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []dataset.Record
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

// readMissing reads a missing-identifier report, one id per line.
func readMissing(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Fields(string(data))
}
