package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTestDB seeds a sqlite file through the seed command and returns its
// path.
func seedTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sales.db")

	buf := &bytes.Buffer{}
	cmd := NewSeedCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--sql", "testdata/seed.sql"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Seeded")

	return dbPath
}

func TestAnalyzeCommandText(t *testing.T) {
	dbPath := seedTestDB(t)

	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--view", testViewPath,
		"--intent", "testdata/intent.yaml",
		"--db", dbPath,
	})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Metric   total_revenue")
	assert.Contains(t, output, "Current  200.00")
	assert.Contains(t, output, "Baseline 400.00")
	assert.Contains(t, output, "TRIGGERED")
	assert.Contains(t, output, "-50.00%")
	assert.Contains(t, output, "Enterprise / EMEA")
	assert.Contains(t, output, "decrease")
}

func TestAnalyzeCommandJSON(t *testing.T) {
	dbPath := seedTestDB(t)

	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--view", testViewPath,
		"--intent", "testdata/intent.yaml",
		"--db", dbPath,
	})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["request_id"])

	detection, ok := data["detection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, detection["triggered"])
}

func TestAnalyzeCommandUnreachableDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--view", testViewPath,
		"--intent", "testdata/intent.yaml",
		"--db", "/no/such/dir/sales.db",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestTablesCommandText(t *testing.T) {
	dbPath := seedTestDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTablesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "customers")
	assert.Contains(t, output, "sales_fact")
	assert.Contains(t, output, "  segment")
	assert.Contains(t, output, "  order_date")
}

func TestTablesCommandJSON(t *testing.T) {
	dbPath := seedTestDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTablesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	tables, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, tables, 2)
}

func TestSeedCommandMissingScript(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSeedCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "--sql", "nope.sql"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E000]")
}
