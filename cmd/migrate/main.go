// Command migrate manages the crosslist database schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/infrastructure/migration"
	"github.com/reseller/crosslist/internal/infrastructure/persistence"
	"github.com/reseller/crosslist/migrations"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// command is one migrate subcommand. Commands that set files work on the
// migration files only and never touch the database.
type command struct {
	usage   string
	minArgs int
	files   func(dir string, args []string, log *zap.Logger) error
	run     func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = map[string]command{
	"up": {
		usage: "up                    Apply all pending migrations (sqlite: auto-migrate)",
		run:   func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	},
	"down": {
		usage: "down                  Roll back all migrations",
		run:   func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	},
	"step": {
		usage:   "step <n>              Apply n migrations (negative rolls back)",
		minArgs: 1,
		run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return m.Steps(n)
		},
	},
	"goto": {
		usage:   "goto <version>        Migrate to a specific version",
		minArgs: 1,
		run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.GoTo(uint(v))
		},
	},
	"version": {
		usage: "version               Show the applied version",
		run: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if v == 0 {
				log.Info("No migrations applied")
				return nil
			}
			log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"force": {
		usage:   "force <version>       Mark a version as applied after a failed run",
		minArgs: 1,
		run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.Force(v)
		},
	},
	"drop": {
		usage: "drop -confirm         Drop every table",
		run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
				return errors.New("drop needs -confirm")
			}
			return m.Drop()
		},
	},
	"create": {
		usage:   "create <name> [desc]  Write a new up/down migration pair",
		minArgs: 1,
		files: func(dir string, args []string, log *zap.Logger) error {
			desc := ""
			if len(args) > 1 {
				desc = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], desc)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		usage: "list                  List migrations",
		files: func(dir string, _ []string, log *zap.Logger) error {
			var (
				names []string
				err   error
			)
			if dir == "" {
				if err := migration.CheckPairs(migrations.FS); err != nil {
					return fmt.Errorf("compiled-in migrations: %w", err)
				}
				names, err = migration.ListMigrationsFS(migrations.FS)
			} else {
				names, err = migration.ListMigrations(dir)
			}
			if err != nil {
				return err
			}
			log.Info("Available migrations", zap.Int("count", len(names)))
			for _, n := range names {
				fmt.Println("  -", n)
			}
			return nil
		},
	},
}

func main() {
	var dir, level string
	flag.StringVar(&dir, "path", "", "Read migrations from this directory instead of the compiled-in set")
	flag.StringVar(&level, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stdout", TimeFormat: "2006-01-02 15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(flag.Args(), dir, config.Load, log); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Error("Migration failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// run executes one command. loadConfig is only called for commands that
// need the database.
func run(args []string, dir string, loadConfig func() (*config.Config, error), log *zap.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
	rest := args[1:]
	if len(rest) < cmd.minArgs {
		return fmt.Errorf("%s: missing argument: %w", args[0], errUsage)
	}

	if cmd.files != nil {
		if dir == "" && args[0] == "create" {
			dir = defaultMigrationsDir
		}
		if dir != "" {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			dir = abs
		}
		return cmd.files(dir, rest, log)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		return runSQLite(args[0], &cfg.Database, log)
	}
	return runPostgres(cmd, rest, dir, &cfg.Database, log)
}

func runPostgres(cmd command, args []string, dir string, cfg *config.DatabaseConfig, log *zap.Logger) error {
	var m *migration.Migrator
	if dir == "" {
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		m, err = migration.New(db, migrations.FS, log)
		if err != nil {
			return err
		}
	} else {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		if m, err = migration.NewFromURL(cfg.DSN(), abs, log); err != nil {
			return err
		}
	}
	defer m.Close()
	return cmd.run(m, args, log)
}

// runSQLite builds the schema from the GORM models; versioned migrations
// only exist for PostgreSQL
func runSQLite(name string, cfg *config.DatabaseConfig, log *zap.Logger) error {
	if name != "up" {
		return fmt.Errorf("sqlite only supports up, got %q", name)
	}
	db, err := persistence.NewDatabaseWithLogger(cfg, log, logger.ParseGormLevel("warn"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return err
	}
	log.Info("SQLite schema is up to date", zap.String("path", cfg.Path))
	return nil
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprintln(w, "crosslist database migration tool")
	fmt.Fprintln(w, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range names {
		fmt.Fprintln(w, "  "+commands[name].usage)
	}
	fmt.Fprintln(w, `
Flags:
  -path string          Use migrations from a directory instead of the compiled-in set
  -log-level string     Log level: debug, info, warn, error (default: info)

The database comes from the CROSSLIST_DATABASE_* settings.`)
}
