package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/drive"
	"github.com/andresuchdata/dairyplan/backend-go/internal/sales"
)

const dateLayout = "2006-01-02"

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load sales sheets, Drive folders or generated sample data into Postgres",
		Flags: []cli.Flag{
			newDBURLFlag(true),
			newFileFlag(),
			&cli.BoolFlag{
				Name:  "sample",
				Usage: "Generate a deterministic sample dataset",
			},
			&cli.StringFlag{
				Name:  "sample-start",
				Usage: "First day of the sample (YYYY-MM-DD)",
				Value: "2023-01-01",
			},
			&cli.StringFlag{
				Name:  "sample-end",
				Usage: "Last day of the sample (YYYY-MM-DD)",
				Value: "2023-12-31",
			},
			&cli.StringFlag{
				Name:  "company",
				Usage: "Company name stamped on sample records",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed of the sample",
				Value: 42,
			},
			&cli.StringFlag{
				Name:    "drive-folder",
				Usage:   "Google Drive folder ID to pull sales sheets from",
				EnvVars: []string{"GOOGLE_DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:    "drive-credentials",
				Usage:   "Service account credentials JSON",
				EnvVars: []string{"GOOGLE_DRIVE_CREDENTIALS_JSON"},
			},
			&cli.StringFlag{
				Name:  "download-dir",
				Usage: "Directory Drive sheets are downloaded to",
				Value: "./data/tmp/drive",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: runSeed,
	}
}

func runSeed(c *cli.Context) error {
	repo := salesRepo(c)
	if err := repo.EnsureSchema(c.Context); err != nil {
		return err
	}

	files := c.StringSlice("file")
	if folder := c.String("drive-folder"); folder != "" {
		paths, err := pullDrive(c, folder)
		if err != nil {
			return err
		}
		files = append(files, paths...)
	}

	var records []domain.SalesRecord
	for _, path := range files {
		recs, warnings, err := loadSalesFile(path)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(c.App.Writer, "%s: warning: %s\n", path, w)
		}
		records = append(records, recs...)
	}

	if c.Bool("sample") {
		start, err := time.Parse(dateLayout, c.String("sample-start"))
		if err != nil {
			return fmt.Errorf("invalid sample-start: %w", err)
		}
		end, err := time.Parse(dateLayout, c.String("sample-end"))
		if err != nil {
			return fmt.Errorf("invalid sample-end: %w", err)
		}
		records = append(records, sales.GenerateSample(c.Uint64("seed"), start, end, c.String("company"))...)
	}

	if len(records) == 0 {
		return fmt.Errorf("nothing to seed: pass --file, --drive-folder or --sample")
	}

	n, err := repo.InsertSales(c.Context, sales.Preprocess(records))
	if err != nil {
		return fmt.Errorf("failed to seed sales: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Seeded %d sales records\n", n)
	return nil
}

func pullDrive(c *cli.Context, folder string) ([]string, error) {
	creds := c.String("drive-credentials")
	if creds == "" {
		return nil, fmt.Errorf("drive-credentials is required with drive-folder")
	}
	svc, err := drive.NewService(c.Context, creds)
	if err != nil {
		return nil, err
	}
	return drive.NewDownloader(svc).DownloadFolderCSV(c.Context, drive.DownloadOptions{
		FolderID:    folder,
		DownloadDir: c.String("download-dir"),
	})
}

// loadSalesFile reads, validates and parses one sales sheet.
func loadSalesFile(path string) ([]domain.SalesRecord, []string, error) {
	table, err := sales.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	report := sales.Validate(table)
	if !report.Valid {
		return nil, report.Warnings, fmt.Errorf("%s: %w: %v", path, domain.ErrValidation, report.Errors)
	}
	records, err := sales.Parse(table)
	if err != nil {
		return nil, report.Warnings, fmt.Errorf("%s: %w", path, err)
	}
	return records, report.Warnings, nil
}
