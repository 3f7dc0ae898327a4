package cli_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonflat runs the CLI from source with the given stdin.
func jsonflat(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command("go", append([]string{"run", "../.."}, args...)...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// TestCLI_FileInputOutput tests the CLI with file input and output
func TestCLI_FileInputOutput(t *testing.T) {
	tempDir := t.TempDir()

	jsonContent := `{
		"customers": [
			{
				"id": 1,
				"name": "John Doe",
				"balance": 10.5,
				"vip": true,
				"address": {"city": "Anytown", "zip": "12345"},
				"tags": ["new"]
			},
			{
				"id": 2,
				"name": "Jane O'Brien",
				"balance": 3,
				"vip": false,
				"address": {"city": "Othertown", "zip": null},
				"tags": []
			}
		]
	}`
	jsonFile := filepath.Join(tempDir, "customers.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(jsonContent), 0644))

	outputFile := filepath.Join(tempDir, "customers.sql")

	_, stderr, err := jsonflat(t, "", "-i", jsonFile, "-o", outputFile, "--dialect", "postgresql")
	require.NoError(t, err, "CLI command failed: %s", stderr)

	generated, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	sql := string(generated)

	assert.Contains(t, sql, "-- Table: customers")
	assert.Contains(t, sql, `DROP TABLE IF EXISTS "customers";`)
	assert.Contains(t, sql, `"id" INTEGER`)
	assert.Contains(t, sql, `"balance" DECIMAL`)
	assert.Contains(t, sql, `"vip" BOOLEAN`)
	assert.Contains(t, sql, `"address_city" TEXT`)
	assert.Contains(t, sql, `"tags" JSONB`)
	assert.Contains(t, sql, `VALUES (2, 'Jane O''Brien', 3, FALSE, 'Othertown', NULL, '[]');`)
}

// TestCLI_StdinStdout tests the CLI with stdin input and stdout output
func TestCLI_StdinStdout(t *testing.T) {
	stdout, stderr, err := jsonflat(t, `[{"id":1,"note":"a,b"},{"id":2,"note":"line\nbreak"}]`, "-f", "csv")
	require.NoError(t, err, "CLI command failed: %s", stderr)

	records, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "note"},
		{"1", "a,b"},
		{"2", "line\nbreak"},
	}, records)
}

func TestCLI_MySQLDialect(t *testing.T) {
	stdout, stderr, err := jsonflat(t, `{"a":true}`, "--dialect", "mysql", "-t", "flags")
	require.NoError(t, err, "CLI command failed: %s", stderr)

	assert.Contains(t, stdout, "CREATE TABLE `flags` (\n  `a` BOOLEAN\n);")
	assert.Contains(t, stdout, "INSERT INTO `flags` (`a`) VALUES (1);")
}

func TestCLI_Count(t *testing.T) {
	stdout, stderr, err := jsonflat(t, `{"a":[1,2,3],"b":[4]}`, "count")
	require.NoError(t, err, "CLI command failed: %s", stderr)
	assert.Equal(t, "4\n", stdout)
}

func TestCLI_Limit(t *testing.T) {
	_, stderr, err := jsonflat(t, `[{"a":1},{"a":2},{"a":3}]`, "--limit", "2")
	require.Error(t, err)
	assert.Contains(t, stderr, "Limit error: Free trial is limited to 2 records")
}

func TestCLI_InvalidJSON(t *testing.T) {
	_, stderr, err := jsonflat(t, `{"name": "John", "age": 30,}`)
	require.Error(t, err)
	assert.Contains(t, stderr, "JSON parsing error")
	assert.Contains(t, stderr, "For help, run: jsonflat --help")
}

func TestCLI_EmptyInput(t *testing.T) {
	_, stderr, err := jsonflat(t, "")
	require.Error(t, err)
	assert.Contains(t, stderr, "empty input received from stdin")
}

func TestCLI_InvalidDialect(t *testing.T) {
	_, stderr, err := jsonflat(t, `[{"a":1}]`, "--dialect", "oracle")
	require.Error(t, err)
	assert.Contains(t, stderr, "Configuration error")
	assert.Contains(t, stderr, "invalid sql_dialect 'oracle'")
}

func TestCLI_Version(t *testing.T) {
	stdout, _, err := jsonflat(t, "", "-v")
	require.NoError(t, err)
	assert.Contains(t, stdout, "jsonflat version")
}

func TestCLI_Help(t *testing.T) {
	stdout, _, err := jsonflat(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage: jsonflat")
	assert.Contains(t, stdout, "convert")
	assert.Contains(t, stdout, "batch")
	assert.Contains(t, stdout, "serve")
}
