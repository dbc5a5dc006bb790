package benchmark

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/index"
)

// defaultPredicate is the spatial test every generated search runs, an
// intersects check against the query box the same way a KV engine's Get
// probes exact key equality.
const defaultPredicate = geom.Intersects

// WorkloadType defines the insert/search mix a Config drives.
type WorkloadType string

const (
	WorkloadInsertHeavy WorkloadType = "insert-heavy" // 95% inserts
	WorkloadSearchHeavy WorkloadType = "search-heavy" // 95% searches
	WorkloadBalanced    WorkloadType = "balanced"      // 50/50 insert/search
	WorkloadSearchOnly  WorkloadType = "search-only"   // 100% searches
	WorkloadInsertOnly  WorkloadType = "insert-only"   // 100% inserts
)

// Config defines one benchmark scenario against a single SpatialIndex
// configuration. A SpatialIndex follows spec.md §5's cooperative,
// single-threaded model, so unlike a lock-striped KV engine this runs one
// operation at a time and has no concurrency setting.
type Config struct {
	Name string

	IndexConfig index.Config

	WorkloadType       WorkloadType
	ObjectDistribution ObjectDistribution

	NumObjects int     // distinct object ids in the population
	SpaceSize  float64 // coordinate extent objects are spread across
	Extent     float64 // side length of each generated bounding box

	Duration time.Duration // how long the timed phase runs

	PreloadObjects int // objects inserted before timing starts

	Seed int64
}

type Result struct {
	Config Config

	TotalOps   int64
	InsertOps  int64
	SearchOps  int64
	Duration   time.Duration
	OpsPerSec  float64

	InsertLatency LatencyStats
	SearchLatency LatencyStats

	Stats Stats
}

// Benchmark drives one SpatialIndex through a Config's workload.
type Benchmark struct {
	idx    *index.SpatialIndex
	config Config
	obs    *statsObserver

	insertLatencies *LatencyHistogram
	searchLatencies *LatencyHistogram

	insertCount atomic.Int64
	searchCount atomic.Int64
	errorCount  atomic.Int64

	objGen *ObjectGenerator

	randSeed atomic.Int64
}

// NewBenchmark builds the SpatialIndex config.IndexConfig names over the
// given backing/header/WAL paths and returns a Benchmark ready to run.
func NewBenchmark(config Config, backingPath, headerPath, logPath string, zlog *zap.Logger) (*Benchmark, error) {
	obs := newStatsObserver()
	idx, err := index.New(config.IndexConfig, backingPath, headerPath, logPath, zlog, obs)
	if err != nil {
		return nil, fmt.Errorf("benchmark: build index: %w", err)
	}

	return &Benchmark{
		idx:             idx,
		config:          config,
		obs:             obs,
		insertLatencies: NewLatencyHistogram(),
		searchLatencies: NewLatencyHistogram(),
		objGen:          NewObjectGenerator(config.NumObjects, config.SpaceSize, config.Extent, config.ObjectDistribution, config.Seed),
	}, nil
}

// Index returns the SpatialIndex under benchmark, for callers that need to
// close or inspect it after Run.
func (b *Benchmark) Index() *index.SpatialIndex { return b.idx }

// Run executes the benchmark: preload, a short untimed warm-up, then the
// timed workload.
func (b *Benchmark) Run() (*Result, error) {
	if b.config.PreloadObjects > 0 {
		fmt.Printf("Preloading %d objects...\n", b.config.PreloadObjects)
		if err := b.preload(); err != nil {
			return nil, err
		}
	}

	fmt.Println("Warming up...")
	b.runWorkload(2 * time.Second)

	b.insertLatencies = NewLatencyHistogram()
	b.searchLatencies = NewLatencyHistogram()
	b.insertCount.Store(0)
	b.searchCount.Store(0)
	b.errorCount.Store(0)

	fmt.Printf("Running benchmark for %v...\n", b.config.Duration)
	startTime := time.Now()
	b.runWorkload(b.config.Duration)
	duration := time.Since(startTime)

	return b.calculateResults(duration), nil
}

func (b *Benchmark) preload() error {
	for i := 0; i < b.config.PreloadObjects; i++ {
		p := b.objGen.GenerateSequential(i)
		if err := b.idx.Insert(p, b.objGen.GeometryFor(p)); err != nil {
			return fmt.Errorf("benchmark: preload insert: %w", err)
		}
	}
	return b.idx.FlushAll()
}

func (b *Benchmark) runWorkload(duration time.Duration) {
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if b.shouldInsert() {
			b.doInsert()
		} else {
			b.doSearch()
		}
	}
}

func (b *Benchmark) shouldInsert() bool {
	switch b.config.WorkloadType {
	case WorkloadInsertOnly:
		return true
	case WorkloadSearchOnly:
		return false
	case WorkloadInsertHeavy:
		return b.randFloat() < 0.95
	case WorkloadSearchHeavy:
		return b.randFloat() < 0.05
	case WorkloadBalanced:
		return b.randFloat() < 0.50
	default:
		return b.randFloat() < 0.50
	}
}

func (b *Benchmark) doInsert() {
	p, g := b.objGen.NextGeometry()

	start := time.Now()
	err := b.idx.Insert(p, g)
	latency := time.Since(start)

	if err != nil {
		b.errorCount.Add(1)
		return
	}

	b.insertLatencies.Record(latency)
	b.insertCount.Add(1)
}

func (b *Benchmark) doSearch() {
	_, g := b.objGen.NextGeometry()

	start := time.Now()
	_, err := b.idx.Search(g, defaultPredicate)
	latency := time.Since(start)

	if err != nil {
		b.errorCount.Add(1)
		return
	}

	b.searchLatencies.Record(latency)
	b.searchCount.Add(1)
}

func (b *Benchmark) calculateResults(duration time.Duration) *Result {
	insertOps := b.insertCount.Load()
	searchOps := b.searchCount.Load()
	totalOps := insertOps + searchOps

	stats := b.obs.snapshot()
	idxStats := b.idx.Stats()
	stats.Height = idxStats.Height
	stats.PageCount = idxStats.PageCount
	stats.ProgramCycles = idxStats.ProgramCycles
	stats.PageSize = idxStats.PageSize

	return &Result{
		Config:    b.config,
		TotalOps:  totalOps,
		InsertOps: insertOps,
		SearchOps: searchOps,
		Duration:  duration,
		OpsPerSec: float64(totalOps) / duration.Seconds(),

		InsertLatency: b.insertLatencies.Stats(),
		SearchLatency: b.searchLatencies.Stats(),

		Stats: stats,
	}
}

func (b *Benchmark) randFloat() float64 {
	return float64(b.randSeed.Add(1)%10000) / 10000.0
}
