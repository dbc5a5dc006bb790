package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/index"
)

// ComparisonSuite runs the same workloads against multiple SpatialIndex
// configurations (tree kind × buffer kind) so their throughput, latency,
// and flash-activity counters can be read side by side.
type ComparisonSuite struct {
	configs []Config
	workDir string
	zlog    *zap.Logger
}

func NewComparisonSuite(workDir string, zlog *zap.Logger) *ComparisonSuite {
	return &ComparisonSuite{
		configs: StandardWorkloads(),
		workDir: workDir,
		zlog:    zlog,
	}
}

func (cs *ComparisonSuite) SetWorkloads(configs []Config) {
	cs.configs = configs
}

// StandardWorkloads returns representative benchmark scenarios.
func StandardWorkloads() []Config {
	return []Config{
		{
			Name:               "insert-heavy-uniform",
			WorkloadType:       WorkloadInsertHeavy,
			ObjectDistribution: DistUniform,
			NumObjects:         200000,
			SpaceSize:          1_000_000,
			Extent:             10,
			Duration:           30 * time.Second,
			PreloadObjects:     20000,
			Seed:               12345,
		},
		{
			Name:               "search-heavy-zipfian",
			WorkloadType:       WorkloadSearchHeavy,
			ObjectDistribution: DistZipfian,
			NumObjects:         200000,
			SpaceSize:          1_000_000,
			Extent:             10,
			Duration:           30 * time.Second,
			PreloadObjects:     100000,
			Seed:               12345,
		},
		{
			Name:               "balanced-uniform",
			WorkloadType:       WorkloadBalanced,
			ObjectDistribution: DistUniform,
			NumObjects:         200000,
			SpaceSize:          1_000_000,
			Extent:             10,
			Duration:           30 * time.Second,
			PreloadObjects:     20000,
			Seed:               12345,
		},
		{
			Name:               "insert-only-sequential",
			WorkloadType:       WorkloadInsertOnly,
			ObjectDistribution: DistSequential,
			NumObjects:         200000,
			SpaceSize:          1_000_000,
			Extent:             10,
			Duration:           15 * time.Second,
			PreloadObjects:     0,
			Seed:               12345,
		},
	}
}

// QuickWorkloads returns shorter-running scenarios for smoke testing.
func QuickWorkloads() []Config {
	return []Config{
		{
			Name:               "quick-insert-heavy",
			WorkloadType:       WorkloadInsertHeavy,
			ObjectDistribution: DistUniform,
			NumObjects:         5000,
			SpaceSize:          100000,
			Extent:             10,
			Duration:           5 * time.Second,
			PreloadObjects:     500,
			Seed:               12345,
		},
		{
			Name:               "quick-balanced",
			WorkloadType:       WorkloadBalanced,
			ObjectDistribution: DistUniform,
			NumObjects:         5000,
			SpaceSize:          100000,
			Extent:             10,
			Duration:           5 * time.Second,
			PreloadObjects:     1000,
			Seed:               12345,
		},
		{
			Name:               "quick-search-heavy",
			WorkloadType:       WorkloadSearchHeavy,
			ObjectDistribution: DistZipfian,
			NumObjects:         5000,
			SpaceSize:          100000,
			Extent:             10,
			Duration:           5 * time.Second,
			PreloadObjects:     3000,
			Seed:               12345,
		},
	}
}

// RunComparison runs every workload config against every named index
// configuration and returns each engine's result list.
func (cs *ComparisonSuite) RunComparison(engines map[string]index.Config) (map[string][]*Result, error) {
	results := make(map[string][]*Result)

	for name, idxCfg := range engines {
		fmt.Printf("\n=== Benchmarking %s ===\n", name)
		var engineResults []*Result

		for i, config := range cs.configs {
			fmt.Printf("\nRunning: %s\n", config.Name)
			config.IndexConfig = idxCfg

			dir := filepath.Join(cs.workDir, fmt.Sprintf("%s-%d", name, i))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}

			bench, err := NewBenchmark(config, filepath.Join(dir, "data.bin"), filepath.Join(dir, "header.yaml"), filepath.Join(dir, "wal.log"), cs.zlog)
			if err != nil {
				fmt.Printf("ERROR building %s/%s: %v\n", name, config.Name, err)
				continue
			}

			result, err := bench.Run()
			bench.Index().Destroy()
			if err != nil {
				fmt.Printf("ERROR running %s/%s: %v\n", name, config.Name, err)
				continue
			}

			engineResults = append(engineResults, result)
			cs.printResult(result)
		}

		results[name] = engineResults
	}

	return results, nil
}

func (cs *ComparisonSuite) printResult(r *Result) {
	fmt.Printf("\nResults for: %s\n", r.Config.Name)
	fmt.Printf("  Throughput: %.0f ops/sec\n", r.OpsPerSec)
	fmt.Printf("  Total Ops: %d (inserts: %d, searches: %d)\n",
		r.TotalOps, r.InsertOps, r.SearchOps)

	if r.InsertOps > 0 {
		fmt.Printf("  Insert Latency (us):\n")
		fmt.Printf("    p50:  %6d\n", r.InsertLatency.P50.Microseconds())
		fmt.Printf("    p99:  %6d\n", r.InsertLatency.P99.Microseconds())
	}
	if r.SearchOps > 0 {
		fmt.Printf("  Search Latency (us):\n")
		fmt.Printf("    p50:  %6d\n", r.SearchLatency.P50.Microseconds())
		fmt.Printf("    p99:  %6d\n", r.SearchLatency.P99.Microseconds())
	}

	fmt.Printf("  Tree height: %d, pages: %d, program cycles: %d\n",
		r.Stats.Height, r.Stats.PageCount, r.Stats.ProgramCycles)
	fmt.Printf("  Splits: %d, merge-backs: %d, flushes: %d (bytes reclaimed: %d)\n",
		r.Stats.Splits, r.Stats.MergeBacks, r.Stats.Flushes, r.Stats.BytesReclaimed)
}

// PrintComparisonTable prints a side-by-side throughput/split table across
// every index configuration RunComparison ran.
func (cs *ComparisonSuite) PrintComparisonTable(results map[string][]*Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "\n=== THROUGHPUT COMPARISON (ops/sec) ===")
	fmt.Fprintf(w, "Workload\t")
	for name := range results {
		fmt.Fprintf(w, "%s\t", name)
	}
	fmt.Fprintln(w)

	for i, config := range cs.configs {
		fmt.Fprintf(w, "%s\t", config.Name)
		for name := range results {
			if i < len(results[name]) {
				fmt.Fprintf(w, "%.0f\t", results[name][i].OpsPerSec)
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()

	fmt.Fprintln(w, "\n=== NODE SPLIT COUNT COMPARISON ===")
	fmt.Fprintf(w, "Workload\t")
	for name := range results {
		fmt.Fprintf(w, "%s\t", name)
	}
	fmt.Fprintln(w)

	for i, config := range cs.configs {
		fmt.Fprintf(w, "%s\t", config.Name)
		for name := range results {
			if i < len(results[name]) {
				fmt.Fprintf(w, "%d\t", results[name][i].Stats.Splits)
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}
