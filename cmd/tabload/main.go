package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/datayard/tabload/internal/config"
	"github.com/datayard/tabload/internal/load"
	"github.com/datayard/tabload/internal/logging"
	"github.com/datayard/tabload/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [table=]file.csv ...\n", filepath.Base(os.Args[0]))
		return 2
	}

	specs, err := parseSpecs(args)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return 2
	}

	slog.Info("configuration loaded",
		"driver", cfg.Database.Driver,
		"batch_size", cfg.Load.BatchSize,
		"max_concurrent", cfg.Load.MaxConcurrent,
		"tables", len(specs),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Load.Timeout)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer st.Close()

	o := load.NewOrchestrator(st, load.Options{
		BatchSize:     cfg.Load.BatchSize,
		MaxConcurrent: cfg.Load.MaxConcurrent,
	})

	results, loadErr := o.Load(ctx, specs)
	report(results)

	if loadErr != nil {
		slog.Error("load incomplete", "error", loadErr)
		return 1
	}
	return 0
}

// openStore connects the backend named by the configured driver.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, cfg.Database.URL, store.PoolSettings{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
	default:
		return store.OpenSQL(ctx, cfg.Database.Driver, cfg.Database.URL)
	}
}

// parseSpecs turns command line arguments into table specs. Each argument is
// either "table=path" or a bare path, in which case the table name derives
// from the file name.
func parseSpecs(args []string) ([]load.TableSpec, error) {
	specs := make([]load.TableSpec, 0, len(args))
	seen := make(map[string]string)

	for _, arg := range args {
		var spec load.TableSpec
		if table, path, ok := strings.Cut(arg, "="); ok {
			spec = load.TableSpec{SourcePath: path, Table: table}
		} else {
			spec = load.TableSpec{SourcePath: arg, Table: tableName(arg)}
		}
		if spec.Table == "" || spec.SourcePath == "" {
			return nil, fmt.Errorf("argument %q: empty table or path", arg)
		}
		if prev, ok := seen[spec.Table]; ok {
			return nil, fmt.Errorf("table %q named by both %q and %q", spec.Table, prev, spec.SourcePath)
		}
		seen[spec.Table] = spec.SourcePath
		specs = append(specs, spec)
	}
	return specs, nil
}

// tableName derives a table name from a file path: the base name without
// extension, lowercased, with anything outside [a-z0-9_] folded to "_".
func tableName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

func report(results []load.Result) {
	for _, res := range results {
		if res.Succeeded() {
			slog.Info("table loaded",
				"table", res.Table,
				"load_id", res.LoadID,
				"rows", res.RowsInserted,
				"duration", res.Duration,
			)
			continue
		}
		slog.Error("table failed",
			"table", res.Table,
			"load_id", res.LoadID,
			"rows_read", res.RowsRead,
			"rows_inserted", res.RowsInserted,
			"error", res.Err,
		)
	}
}
