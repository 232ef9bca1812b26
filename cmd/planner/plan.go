package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train demand models from sales files or the sales database",
		Flags: []cli.Flag{
			newDBURLFlag(false),
			newFileFlag(),
			newProductFlag(),
			&cli.StringFlag{
				Name:  "company",
				Usage: "Train company scoped models",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: runTrain,
	}
}

func runTrain(c *cli.Context) error {
	stack, err := bootstrap(c)
	if err != nil {
		return err
	}
	if err := loadDataset(c, stack.Planning); err != nil {
		return err
	}

	results, err := stack.Planning.TrainProducts(c.Context, c.StringSlice("product"), c.String("company"))
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		fmt.Fprintln(c.App.Writer, r.Message)
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d products failed to train", failed, len(results))
	}
	return nil
}

// loadDataset fills the planning service from --file, or from the sales
// database when no file is given.
func loadDataset(c *cli.Context, planning *service.PlanningService) error {
	files := c.StringSlice("file")
	if len(files) == 0 {
		_, err := planning.LoadFromRepository(c.Context, domain.SalesFilter{Company: c.String("company")})
		return err
	}

	var records []domain.SalesRecord
	for _, path := range files {
		recs, _, err := loadSalesFile(path)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}
	planning.SetSales(records)
	return nil
}

func forecastCommand() *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Print forecasts or export them to CSV",
		Flags: []cli.Flag{
			newProductFlag(),
			newHorizonFlag(),
			&cli.BoolFlag{
				Name:  "include-history",
				Usage: "Include fitted values over the training range",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write future forecasts of every product to this CSV file",
			},
		},
		Action: runForecast,
	}
}

func runForecast(c *cli.Context) error {
	stack, err := bootstrap(c)
	if err != nil {
		return err
	}
	keys := c.StringSlice("product")
	horizon := c.Int("horizon")

	if out := c.String("out"); out != "" {
		rows, err := stack.Planning.ExportForecasts(c.Context, keys, horizon)
		if err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		if err := writeForecastCSV(f, rows); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Exported %d forecast rows to %s\n", len(rows), out)
		return nil
	}

	if len(keys) == 0 {
		keys = stack.Store.Keys()
	}
	forecasts := make([]domain.ForecastSeries, 0, len(keys))
	for _, key := range keys {
		fc, err := stack.Planning.Forecast(c.Context, key, horizon, c.Bool("include-history"))
		if err != nil {
			return err
		}
		forecasts = append(forecasts, fc)
	}
	return printJSON(c.App.Writer, forecasts)
}

func writeForecastCSV(w io.Writer, rows []domain.ForecastExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"product", "date", "predicted_demand", "lower_bound", "upper_bound"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ProductKey,
			r.Date.Format(dateLayout),
			strconv.FormatFloat(r.Predicted, 'f', 2, 64),
			strconv.FormatFloat(r.Lower, 'f', 2, 64),
			strconv.FormatFloat(r.Upper, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Plan production, inventory or the whole portfolio",
		Flags: []cli.Flag{
			newDBURLFlag(false),
			newFileFlag(),
			newProductFlag(),
			newHorizonFlag(),
			&cli.Float64Flag{
				Name:  "safety-stock",
				Usage: "Safety stock fraction",
				Value: 0.1,
			},
			&cli.Float64Flag{
				Name:  "inventory",
				Usage: "Simulate inventory starting from this stock level",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Summarize every product instead of planning one",
			},
			&cli.BoolFlag{
				Name:  "capacity",
				Usage: "Roll production up into daily capacity utilization",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: runOptimize,
	}
}

func runOptimize(c *cli.Context) error {
	stack, err := bootstrap(c)
	if err != nil {
		return err
	}
	// historical prices are optional here
	if len(c.StringSlice("file")) > 0 || salesRepo(c) != nil {
		if err := loadDataset(c, stack.Planning); err != nil {
			return err
		}
	}

	keys := c.StringSlice("product")
	horizon := c.Int("horizon")
	planning := stack.Planning

	switch {
	case c.Bool("summary"):
		summary, err := planning.OptimizationSummary(c.Context, keys, horizon)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, summary)
	case c.Bool("capacity"):
		rows, err := planning.CapacityUtilization(c.Context, keys, horizon)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, rows)
	}

	if len(keys) != 1 {
		return fmt.Errorf("exactly one --product is required without --summary or --capacity")
	}
	if c.IsSet("inventory") {
		plan, err := planning.OptimizeInventory(c.Context, service.InventoryRequest{
			ProductKey:       keys[0],
			Horizon:          horizon,
			CurrentInventory: c.Float64("inventory"),
		})
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, plan)
	}

	safety := c.Float64("safety-stock")
	plan, err := planning.OptimizeProduction(c.Context, service.ProductionRequest{
		ProductKey:  keys[0],
		Horizon:     horizon,
		SafetyStock: &safety,
	})
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, plan)
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "Inspect or delete trained models",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List trained models",
				Action: func(c *cli.Context) error {
					stack, err := bootstrap(c)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, stack.Planning.Models())
				},
			},
			{
				Name:      "exists",
				Usage:     "Report whether storage holds a model for a product key",
				ArgsUsage: "KEY",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return fmt.Errorf("product key is required")
					}
					stack, err := bootstrap(c)
					if err != nil {
						return err
					}
					state, err := stack.Planning.ModelPersistence(c.Context, key)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, state)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete the model of a product key",
				ArgsUsage: "KEY",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return fmt.Errorf("product key is required")
					}
					stack, err := bootstrap(c)
					if err != nil {
						return err
					}
					if err := stack.Planning.DeleteModel(c.Context, key); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Deleted model for %s\n", key)
					return nil
				},
			},
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
