// Command migrate applies, inspects and reverts the database schema.
//
//	migrate up            apply pending SQL migrations
//	migrate down VERSION  revert the latest migration (must be VERSION)
//	migrate status        show the schema plan and ledger
//	migrate auto          run GORM AutoMigrate (refused in production)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"breaksphere/internal/bootstrap"
	"breaksphere/internal/config"
	"breaksphere/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <up|down VERSION|status|auto>")

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipSchema: true, SkipRedis: true})
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		n, err := database.NewMigrator(db).Up(ctx)
		if err != nil {
			return err
		}
		log.Printf("applied %d migration(s)", n)
	case "down":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.NewMigrator(db).Down(ctx, version); err != nil {
			return err
		}
		log.Printf("rolled back %06d", version)
	case "status":
		return printStatus(ctx, db, cfg)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("automigrate complete")
	default:
		return errUsage
	}
	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "mode\t%s\n", status.Mode)
	fmt.Fprintf(w, "env\t%s\n", status.Environment)
	fmt.Fprintf(w, "sql migrations\t%t\n", status.RunSQL)
	fmt.Fprintf(w, "automigrate\t%t\n", status.AutoMigrate)
	for _, a := range status.Applied {
		fmt.Fprintf(w, "applied\t%06d_%s\t%s\n", a.Version, a.Name, a.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending\t%s\n", m)
	}
	return w.Flush()
}
