package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"manifest-route-service/internal/adapters/repositories"
	"manifest-route-service/internal/config"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/manifest"
	"manifest-route-service/internal/platform/db"
	"manifest-route-service/internal/platform/obs"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

const usage = `usage: dbtool <command> [flags]

commands:
  migrate                               apply pending schema migrations
  import  -name NAME -file PATH [-csv]  create a route from a manifest file
  set-key -user ID -key KEY             store (or clear, with an empty key) a user provider key
`

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	slog.SetDefault(obs.NewLogger(os.Stderr, config.Get("LOG_LEVEL", "info")))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		slog.Error("dbtool failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch cmd {
	case "migrate":
		applied, err := db.Migrate(ctx, conn)
		if err != nil {
			return err
		}
		for _, r := range applied {
			slog.Info("migration applied", "migration", r.Source.Path, "dur_ms", r.Duration.Milliseconds())
		}
		slog.Info("schema ready", "applied", len(applied))
		return nil
	case "import":
		return importManifest(ctx, conn, args)
	case "set-key":
		return setKey(ctx, conn, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func importManifest(ctx context.Context, conn *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	name := fs.String("name", "", "route name")
	file := fs.String("file", "", "manifest file")
	asCSV := fs.Bool("csv", false, "treat the file as CSV")
	owner := fs.String("owner", "", "owning user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" || *file == "" {
		return fmt.Errorf("import: -name and -file are required")
	}

	if _, err := db.Migrate(ctx, conn); err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("import: open manifest: %w", err)
	}
	defer f.Close()

	var res manifest.Result
	if *asCSV {
		res, err = manifest.ParseCSV(f)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
	} else {
		raw, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("import: read manifest: %w", err)
		}
		res = manifest.NewParser(slog.Default()).Parse(string(raw))
	}

	if len(res.Stops) == 0 {
		return fmt.Errorf("import: manifest produced no stops (%d block(s) dropped)", len(res.Dropped))
	}

	repo := repositories.NewSQLStopRepository(conn)
	route, stops, err := repo.CreateRoute(ctx, domain.Route{Name: *name, OwnerID: *owner}, res.Stops)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	slog.Info("route imported", "route_id", route.ID, "stops", len(stops), "dropped", len(res.Dropped))
	for _, st := range stops {
		if st.SuspectedDuplicate != nil {
			slog.Warn("suspected duplicate stop", "position", st.OriginalPosition,
				"address", st.Address, "duplicate_of", *st.SuspectedDuplicate)
		}
	}
	fmt.Println(route.ID)
	return nil
}

func setKey(ctx context.Context, conn *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("set-key", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	key := fs.String("key", "", "provider API key (empty clears)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := repositories.NewSQLStopRepository(conn).SetProviderKey(ctx, *user, *key); err != nil {
		return fmt.Errorf("set-key: %w", err)
	}
	slog.Info("provider key updated", "user_id", *user, "cleared", strings.TrimSpace(*key) == "")
	return nil
}
