package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/testutil"
)

// workspace lays out a config file, a registry, two scenarios and a
// bootstrap script in a temp dir and returns the config path.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("schema/delivery.cue", "package seed\n"+testutil.DeliverySchemaCUE)
	write("scenarios/genders.yaml", testutil.GendersScenarioYAML)
	write("scenarios/order.yml", testutil.OrderScenarioYAML)
	write("ddl/sqlite.sql", testutil.DeliveryDDLSQLite)
	write("seedgraph.yaml", fmt.Sprintf(`
database:
  driver: sqlite3
  dsn: %s
schema_dir: schema
scenarios_dir: scenarios
bootstrap_ddl: ddl/sqlite.sql
log_level: error
`, filepath.Join(dir, "seed.db")))
	return filepath.Join(dir, "seedgraph.yaml")
}

// execute runs the root command and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
