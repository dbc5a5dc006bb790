// Command geoindex-bench runs the spatial-index benchmark suite as a
// comparison sweep across several tree/buffer configurations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/index"
	"github.com/intellect4all/geoindex/internal/benchmark"
)

func newLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func baseIndexConfig(tree index.TreeKind, buf index.BufferKind) index.Config {
	return index.Config{
		Dim: 2, Tree: tree, Buffer: buf, PageSize: 4096,
		MinEntriesLeaf: 4, MaxEntriesLeaf: 10,
		MinEntriesInt:  4, MaxEntriesInt: 10,
		BufferCapacityBytes:  1 << 20,
		FASTFlushingUnitSize: 16,
		EFINDWriteBufferSize: 64,
		EFINDMinFlushSize:    8,
		ForX:                 4,
		ForY:                 4,
		HilbertOrder:         16,
		SpaceMin:             []float64{0, 0},
		SpaceMax:             []float64{1_000_000, 1_000_000},
		LogSize:              16 << 20,
	}
}

func main() {
	var quick bool
	var workDir string

	root := &cobra.Command{
		Use:   "geoindex-bench",
		Short: "benchmark the spatial index across tree/buffer configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				var err error
				workDir, err = os.MkdirTemp("", "geoindex-bench-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(workDir)
			}

			engines := map[string]index.Config{
				"rtree-none":     baseIndexConfig(index.RTreeKind, index.NoBuffer),
				"rstar-lru":      baseIndexConfig(index.RStarTreeKind, index.LRUBuffer),
				"hilbert-efind":  baseIndexConfig(index.HilbertTreeKind, index.EFINDBuffer),
				"fortree-fast":   baseIndexConfig(index.FORTreeKind, index.FASTBuffer),
			}

			zlog := newLogger()
			defer zlog.Sync()

			suite := benchmark.NewComparisonSuite(workDir, zlog)
			if quick {
				suite.SetWorkloads(benchmark.QuickWorkloads())
			}

			results, err := suite.RunComparison(engines)
			if err != nil {
				return err
			}
			suite.PrintComparisonTable(results)
			return nil
		},
	}
	root.Flags().BoolVar(&quick, "quick", false, "run the shorter quick workload set")
	root.Flags().StringVar(&workDir, "work-dir", "", "directory to hold per-engine backing files (default: a temp dir, removed after the run)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
