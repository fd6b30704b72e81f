package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	tiled "github.com/qri-io/tiled-go"
	"github.com/qri-io/tiled-go/logger"
	"github.com/qri-io/tiled-go/zarr"
)

const (
	storeFlag       = "store"
	arrayFlag       = "array"
	regionsFlag     = "regions"
	reduceFlag      = "reduce"
	strategyFlag    = "strategy"
	workersFlag     = "workers"
	maxInFlightFlag = "max-in-flight"
	chunksFlag      = "chunks"
	logFormatFlag   = "log-format"
	logLevelFlag    = "log-level"
)

func NewRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "tiledextract",
		Short: "Reduce regions of a zarr array tile by tile",
		Long: "Reads a list of regions and reduces each of them over a zarr array, visiting\n" +
			"every touched tile once. Results are written to stdout as JSON lines.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.String(storeFlag, "", "directory or http(s) URL of the zarr store")
	flags.String(arrayFlag, "", "path of the array within the store")
	flags.String(regionsFlag, "", "YAML or JSON file listing regions as {name, bounds: [[start, stop], ...]}")
	flags.String(reduceFlag, "sum", "reduction to apply: sum, mean, min, max or count")
	flags.String(strategyFlag, "auto", "execution strategy: auto, serial, pool or cooperative")
	flags.Int(workersFlag, 0, "worker pool size, 0 uses every CPU")
	flags.Int(maxInFlightFlag, 8, "tile reads in flight for the cooperative strategy")
	flags.String(chunksFlag, "", "comma separated tile size per dimension, defaults to the array's chunks")
	flags.String(logFormatFlag, "text", "log format: text or json")
	flags.String(logLevelFlag, "info", "log level: debug, info, warn, error or none")

	return cmd
}

// bindFlags bridges cobra flags and TILED_* environment variables through
// viper; the environment wins over flag defaults, explicit flags win over
// both.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("TILED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(flags)
}

type regionSpec struct {
	Name   string   `json:"name"`
	Bounds [][2]int `json:"bounds"`
}

type result struct {
	Region  int     `json:"region"`
	Name    string  `json:"name,omitempty"`
	Value   float64 `json:"value"`
	Skipped bool    `json:"skipped,omitempty"`
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := logger.NewLogger(v.GetString(logFormatFlag), v.GetString(logLevelFlag))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(v.GetString(storeFlag), log)
	if err != nil {
		return err
	}
	arr, err := zarr.Open(ctx, store, v.GetString(arrayFlag))
	if err != nil {
		return fmt.Errorf("opening array: %w", err)
	}
	log.Info("opened array", zap.String("array", arr.Info()))

	regions, names, err := loadRegions(v.GetString(regionsFlag))
	if err != nil {
		return err
	}

	var tiling tiled.Tiling = arr.Tiling()
	chunks, err := parseChunks(v.GetString(chunksFlag))
	if err != nil {
		return err
	}
	if len(chunks) > 0 {
		if tiling, err = tiled.NewFixedGrid(chunks...); err != nil {
			return err
		}
	}

	strategy, err := parseStrategy(v.GetString(strategyFlag), v.GetInt(workersFlag), v.GetInt(maxInFlightFlag))
	if err != nil {
		return err
	}

	skipped := map[int]bool{}
	var stats tiled.Stats
	opts := []tiled.Option{
		tiled.WithStrategy(strategy),
		tiled.WithLogger(log),
		tiled.WithStats(&stats),
		tiled.WithSkipHandler(func(region int, err error) {
			skipped[region] = true
			log.Warn("skipping region", zap.Int("region", region), zap.Error(err))
		}),
	}

	values, err := reduce(ctx, v.GetString(reduceFlag), arr, regions, names, tiling, opts)
	if err != nil {
		return err
	}
	log.Info("extracted regions",
		zap.String("strategy", stats.Strategy),
		zap.Int("tiles", stats.Tiles),
		zap.Int("contained", stats.Contained),
		zap.Int("shared", stats.Shared),
		zap.Int("skipped", stats.Skipped))

	enc := json.NewEncoder(cmd.OutOrStdout())
	for i, val := range values {
		if err := enc.Encode(result{Region: i, Name: names[i], Value: val, Skipped: skipped[i]}); err != nil {
			return err
		}
	}
	return nil
}

func openStore(location string, log logger.Logger) (zarr.Store, error) {
	if location == "" {
		return nil, fmt.Errorf("--%s is required", storeFlag)
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return zarr.NewHTTPStore(location, nil), nil
	}
	local, err := zarr.NewLocalStore(location)
	if err != nil {
		return nil, err
	}
	return zarr.NewRetryStore(local, nil, log), nil
}

func loadRegions(path string) ([]tiled.Ranges, []string, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("--%s is required", regionsFlag)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var specs []regionSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, nil, fmt.Errorf("reading regions from %s: %w", path, err)
	}

	regions := make([]tiled.Ranges, len(specs))
	names := make([]string, len(specs))
	for i, s := range specs {
		rs := make(tiled.Ranges, len(s.Bounds))
		for d, b := range s.Bounds {
			rs[d] = tiled.Range{Start: b[0], Stop: b[1]}
		}
		regions[i] = rs
		names[i] = s.Name
	}
	return regions, names, nil
}

func parseStrategy(name string, workers, maxInFlight int) (tiled.Strategy, error) {
	switch name {
	case "auto", "":
		return tiled.Strategy{}, nil
	case "serial":
		return tiled.Serial(), nil
	case "pool":
		return tiled.WorkerPool(workers), nil
	case "cooperative":
		return tiled.Cooperative(maxInFlight), nil
	}
	return tiled.Strategy{}, fmt.Errorf("unknown strategy %q", name)
}

// parseChunks reads a tile size list such as "5,5" or "[5, 5]". An empty
// list means the array's own chunking.
func parseChunks(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	var chunks []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid --chunks entry %q", tiled.ErrConfiguration, part)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func reduce(ctx context.Context, name string, arr *zarr.Array, regions []tiled.Ranges, names []string, tiling tiled.Tiling, opts []tiled.Option) ([]float64, error) {
	switch name {
	case "sum":
		return tiled.Extract(ctx, arr, regions, names, tiled.SumOf[string](), tiling, opts...)
	case "mean":
		return tiled.Extract(ctx, arr, regions, names, tiled.MeanOf[string](), tiling, opts...)
	case "min":
		return tiled.Extract(ctx, arr, regions, names, tiled.MinOf[string](), tiling, opts...)
	case "max":
		return tiled.Extract(ctx, arr, regions, names, tiled.MaxOf[string](), tiling, opts...)
	case "count":
		counts, err := tiled.Extract(ctx, arr, regions, names, tiled.CountOf[float64, string](), tiling, opts...)
		if err != nil {
			return nil, err
		}
		values := make([]float64, len(counts))
		for i, c := range counts {
			values[i] = float64(c)
		}
		return values, nil
	}
	return nil, fmt.Errorf("unknown reduction %q", name)
}
