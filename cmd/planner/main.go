package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

type dbKey struct{}

func newDBURLFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: required,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newFileFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Sales CSV or XLSX file (repeatable)",
	}
}

func newProductFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "product",
		Aliases: []string{"p"},
		Usage:   "Product key (repeatable); all when omitted",
	}
}

func newHorizonFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "horizon",
		Usage: "Days to forecast; the configured default when zero",
	}
}

func initDB(c *cli.Context) error {
	url := c.String("db-url")
	if url == "" {
		return nil
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

// salesRepo is the repository behind --db-url, or nil without one.
func salesRepo(c *cli.Context) repository.SalesRepository {
	db, ok := c.Context.Value(dbKey{}).(*sql.DB)
	if !ok || db == nil {
		return nil
	}
	return postgres.NewSalesRepository(postgres.Wrap(db, "pgx", postgres.DefaultPoolOptions()))
}

func bootstrap(c *cli.Context) (*service.Stack, error) {
	return service.Bootstrap(c.Context, config.Load(), salesRepo(c))
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	app := &cli.App{
		Name:  "planner",
		Usage: "Train demand models and plan dairy production",
		Commands: []*cli.Command{
			seedCommand(),
			trainCommand(),
			forecastCommand(),
			optimizeCommand(),
			modelsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
