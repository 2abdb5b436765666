package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/vinsight/internal/config"
	"github.com/kalambet/vinsight/internal/storage"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// --- lookup ---

var lookupCmd = &cobra.Command{
	Use:   "lookup <vrm|vin>",
	Short: "Look up a vehicle on the running server",
	Long: `Look up a vehicle on the running server and print the full payload.

Examples:
  vinsight lookup "AB12 CDE"
  vinsight lookup --vin WF0AXXGCDA1234567`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useVIN, _ := cmd.Flags().GetBool("vin")
		key := strings.Join(args, " ")
		kt := vehicle.KeyVRM
		if useVIN {
			kt = vehicle.KeyVIN
		}
		if _, err := vehicle.Normalize(key, kt); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		out, err := client.lookup(cmd.Context(), string(kt), key)
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				printWarning("No vehicle found for %s %s", strings.ToUpper(string(kt)), key)
				return nil
			}
			return err
		}
		writeLookupSummary(stderr, out)
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	lookupCmd.Flags().Bool("vin", false, "treat the key as a VIN instead of a VRM")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search vehicles by partial VIN, VRM, make or model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := client.search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		writeSearchResults(cmd.OutOrStdout(), res)
		return nil
	},
}

// --- refresh ---

var refreshCmd = &cobra.Command{
	Use:   "refresh <vehicle-id>",
	Short: "Drop cached insights so the next lookup regenerates them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("vehicle id must be an integer, got %q", args[0])
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := client.refresh(cmd.Context(), id)
		if err != nil {
			return err
		}
		printSuccess("%s (vehicle %d, %s)", res.Message, res.VehicleID, res.VRM)
		return nil
	},
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load vehicle aggregates from a JSON file into the store",
	Long: `Load vehicle aggregates into the configured store.

The file holds a JSON array of objects shaped like the detailed_data field
of a lookup response. Vehicles whose VIN or VRM already exists are skipped.

Example:
  vinsight seed --file vehicles.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return errors.New("--file is required")
		}
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		defer f.Close()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.New(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		res, err := seed(cmd.Context(), store, f)
		if err != nil {
			return err
		}
		printSuccess("Seeded %d vehicles (%d skipped as duplicates)", res.inserted, res.skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "JSON file with an array of vehicle aggregates")
}

type aggregateInserter interface {
	InsertAggregate(ctx context.Context, agg *vehicle.Aggregate) (int64, error)
}

type seedResult struct {
	inserted int
	skipped  int
}

func seed(ctx context.Context, store aggregateInserter, r io.Reader) (seedResult, error) {
	var aggs []*vehicle.Aggregate
	if err := json.NewDecoder(r).Decode(&aggs); err != nil {
		return seedResult{}, fmt.Errorf("decoding aggregates: %w", err)
	}

	var res seedResult
	for i, agg := range aggs {
		if agg == nil {
			continue
		}
		agg.Basic.ID = 0
		if _, err := store.InsertAggregate(ctx, agg); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				printWarning("skipping entry %d: %v", i, err)
				res.skipped++
				continue
			}
			return res, fmt.Errorf("inserting entry %d: %w", i, err)
		}
		res.inserted++
	}
	return res, nil
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, storage and model status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	fmt.Fprintln(stderr, versionString())

	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	var t statusTable
	defer t.write(stderr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(cfg.Server.BaseURL() + "/health")
	if err != nil {
		t.add("Server", "stopped")
	} else {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			t.add("Server", "running at %s", cfg.Server.BaseURL())
		case http.StatusServiceUnavailable:
			t.add("Server", "running, database unreachable")
		default:
			t.add("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	t.add("LLM", "%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	t.add("Insights TTL", "%s", cfg.Insights.TTL)
	t.add("Storage", "%s", cfg.Storage.Driver)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		t.add("Database", "unavailable: %v", err)
		return nil
	}
	defer store.Close()

	if st, err := store.Stats(ctx); err == nil {
		t.add("Vehicles", "%d", st.Vehicles)
		t.add("Cached insights", "%d", st.Insights)
	}
	if versions, err := store.AppliedMigrations(ctx); err == nil {
		t.add("Migrations", "%s", migrationsLabel(versions))
	}
	if cfg.Storage.Driver != storage.DriverPostgres {
		t.add("Data dir", "%s", cfg.Storage.DataDir)
	}
	return nil
}

func migrationsLabel(versions []int64) string {
	if len(versions) == 0 {
		return "none applied"
	}
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%d applied (%s)", len(versions), strings.Join(parts, ", "))
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
