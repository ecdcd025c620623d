package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/seedgraph/internal/compiler"
	"github.com/roach88/seedgraph/internal/config"
	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/ir"
	"github.com/roach88/seedgraph/internal/scenario"
	"github.com/roach88/seedgraph/internal/store"
	"github.com/roach88/seedgraph/internal/transform"
)

// Error code constants, shared by every command.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScenarioLoad = "E002" // Scenario file unreadable or invalid
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load or compile failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeUnknown      = "E006" // Unknown scenario name
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDatabase     = "E008" // Database open, bootstrap or query failed
)

// LoadError is a command-level failure with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// fail prints err and returns the ExitError the command should return.
func fail(f *OutputFormatter, code int, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Error(), nil)
		return WrapExitError(code, le.Code, err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(code, ErrCodeGeneric, err)
}

// loadSchema compiles the registry in dir.
func loadSchema(dir string) (*ir.Schema, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	s, err := compiler.LoadDir(dir)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: ce.Message, Pos: ce.Pos}
		}
		code := ErrCodeLoadFailed
		if strings.Contains(err.Error(), "no CUE files found") {
			code = ErrCodeNoFiles
		}
		return nil, &LoadError{Code: code, Message: err.Error()}
	}
	return s, nil
}

// loadCatalog reads the scenarios directory.
func loadCatalog(ctx context.Context, dir string) (*scenario.Catalog, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", dir)}
	}
	c, err := scenario.LoadDir(ctx, dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScenarioLoad, Message: err.Error()}
	}
	return c, nil
}

// selectScenarios resolves names against the catalog.
func selectScenarios(c *scenario.Catalog, names []string) ([]*scenario.Scenario, error) {
	sel, err := c.Select(names)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeUnknown, Message: err.Error()}
	}
	return sel, nil
}

// openStore connects to the configured database, runs the bootstrap script
// and creates the journal table when journaling is on.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	if cfg.BootstrapDDL != "" {
		ddl, err := os.ReadFile(cfg.BootstrapDDL)
		if err != nil {
			st.Close()
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("bootstrap script: %v", err)}
		}
		if err := st.Bootstrap(ctx, string(ddl)); err != nil {
			st.Close()
			return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
		}
	}
	if cfg.Journal {
		if err := st.EnsureJournal(ctx); err != nil {
			st.Close()
			return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
		}
	}
	return st, nil
}

// newEngine builds an engine for the registry. backend may be nil when the
// engine is only used for planning.
func newEngine(o *RootOptions, schema *ir.Schema, backend engine.Backend) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(o.Logger),
		engine.WithTransforms(transform.NewRegistry()),
		engine.WithMaxNodes(o.Config.MaxNodes),
	}
	if o.Config.Journal {
		hash, err := ir.SchemaHash(schema)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithJournal(hash))
	}
	return engine.New(schema, backend, opts...), nil
}

// withTimeout applies the configured overall timeout.
func withTimeout(ctx context.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Timeout)
	}
	return context.WithCancel(ctx)
}
