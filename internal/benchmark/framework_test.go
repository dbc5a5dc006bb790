package benchmark

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/index"
)

func quickIndexConfig() index.Config {
	return index.Config{
		Dim: 2, Tree: index.RTreeKind, Buffer: index.NoBuffer, PageSize: 256,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt:  2, MaxEntriesInt: 4,
	}
}

func TestBenchmarkRunProducesLatencyAndStats(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Name:               "test-balanced",
		IndexConfig:        quickIndexConfig(),
		WorkloadType:       WorkloadBalanced,
		ObjectDistribution: DistUniform,
		NumObjects:         200,
		SpaceSize:          10000,
		Extent:             5,
		Duration:           200 * time.Millisecond,
		PreloadObjects:     20,
		Seed:               1,
	}

	b, err := NewBenchmark(cfg, filepath.Join(dir, "data.bin"), filepath.Join(dir, "header.yaml"), filepath.Join(dir, "wal.log"), nil)
	require.NoError(t, err)
	defer b.Index().Destroy()

	result, err := b.Run()
	require.NoError(t, err)

	require.Equal(t, cfg.Name, result.Config.Name)
	require.Greater(t, result.TotalOps, int64(0))
	require.Positive(t, result.Stats.PageCount)
}

func TestObjectGeneratorDistributionsStayInRange(t *testing.T) {
	for _, dist := range []ObjectDistribution{DistUniform, DistZipfian, DistSequential, DistLatest} {
		g := NewObjectGenerator(100, 1000, 5, dist, 42)
		for i := 0; i < 50; i++ {
			p, bbox := g.NextGeometry()
			require.Less(t, p, uint32(100))
			require.Equal(t, bbox, g.GeometryFor(p))
		}
	}
}
