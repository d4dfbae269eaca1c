package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `directions:
  reference: Buy
  opposite: Sell
workers: 2
`

// Group X round-trips in two exits; group Y is left open.
const testInput = `symbol,timestamp,side,quantity,price,order_id
X,0,Buy,100,10,A1
Y,5,Buy,10,1,B1
X,10,Sell,60,10.5,A2
X,20,Sell,40,11,A3
`

// Group Z goes back in time.
const unorderedInput = `symbol,timestamp,side,quantity,price,order_id
X,0,Buy,100,10,A1
Z,5,Buy,10,1,C1
Z,4,Sell,10,1,C2
X,10,Sell,100,10.5,A2
`

type cliResult struct {
	Code   int
	Stdout string
	Stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(t.Context(), args, &stdout, &stderr)
	return cliResult{Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fixture is a temp dir holding a config, an input file and a database path.
type fixture struct {
	dir    string
	config string
	input  string
	db     string
}

func newFixture(t *testing.T, input string) fixture {
	t.Helper()
	t.Setenv("MARKOUT_DB", "")
	dir := t.TempDir()
	return fixture{
		dir:    dir,
		config: writeTestFile(t, dir, "markout.yaml", testConfig),
		input:  writeTestFile(t, dir, "fills.csv", input),
		db:     filepath.Join(dir, "markout.db"),
	}
}

func decodeResponse(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}
