// Package index implements the spatial-index façade (SPEC_FULL.md §4.10 /
// spec.md §4.12): a uniform insert/remove/update/search surface bound at
// construction to one tree kind (R/R*/Hilbert/FOR) and one buffer kind
// (none/LRU/HLRU/S2Q/2Q/FAST/eFIND), plus header-file persistence so a
// façade can be reconstructed without external state.
package index

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/efind"
	"github.com/intellect4all/geoindex/fast"
	"github.com/intellect4all/geoindex/page"
	"github.com/intellect4all/geoindex/rtree"
)

// TreeKind selects the tree-core family a façade drives.
type TreeKind int

const (
	RTreeKind TreeKind = iota
	RStarTreeKind
	HilbertTreeKind
	FORTreeKind
)

func (k TreeKind) String() string {
	switch k {
	case RStarTreeKind:
		return "rstar"
	case HilbertTreeKind:
		return "hilbert"
	case FORTreeKind:
		return "fortree"
	default:
		return "rtree"
	}
}

// BufferKind selects the page-caching strategy bound to the tree core.
type BufferKind int

const (
	NoBuffer BufferKind = iota
	LRUBuffer
	HLRUBuffer
	S2QBuffer
	TwoQBuffer
	FASTBuffer
	EFINDBuffer
)

func (k BufferKind) String() string {
	switch k {
	case LRUBuffer:
		return "lru"
	case HLRUBuffer:
		return "hlru"
	case S2QBuffer:
		return "s2q"
	case TwoQBuffer:
		return "2q"
	case FASTBuffer:
		return "fast"
	case EFINDBuffer:
		return "efind"
	default:
		return "none"
	}
}

// Config is the typed, validated form spec.md §6's recognized per-instance
// configuration options unmarshal into via viper.
type Config struct {
	Dim      int             `mapstructure:"dim"`
	Tree     TreeKind        `mapstructure:"tree_kind"`
	Buffer   BufferKind      `mapstructure:"buffer_kind"`
	PageSize int             `mapstructure:"page_size"`
	IOAccess page.AccessMode `mapstructure:"io_access"`
	Storage  page.StorageKind `mapstructure:"storage_kind"`

	MinEntriesLeaf int `mapstructure:"min_entries_leaf"`
	MaxEntriesLeaf int `mapstructure:"max_entries_leaf"`
	MinEntriesInt  int `mapstructure:"min_entries_int"`
	MaxEntriesInt  int `mapstructure:"max_entries_int"`

	SplitType rtree.SplitType `mapstructure:"split_type"`

	// R*-tree tuning (spec.md §4.7).
	ReinsertPercLeaf float64 `mapstructure:"reinsert_perc_leaf"`
	ReinsertPercInt  float64 `mapstructure:"reinsert_perc_int"`
	MaxNeighbors     int     `mapstructure:"max_neighbors_to_examine"`

	// Hilbert R-tree tuning.
	HilbertOrder uint      `mapstructure:"hilbert_order"`
	SpaceMin     []float64 `mapstructure:"space_min"`
	SpaceMax     []float64 `mapstructure:"space_max"`

	// FOR-tree tuning (SPEC_FULL.md §4.6).
	ForX uint `mapstructure:"for_x"`
	ForY uint `mapstructure:"for_y"`

	// Buffer sizing, shared by LRU/HLRU/S2Q/2Q.
	BufferCapacityBytes int `mapstructure:"buffer_capacity_bytes"`

	// FAST tuning (spec.md §4.10).
	FASTFlushingUnitSize int            `mapstructure:"fast_flushing_unit_size"`
	FASTPolicy           fast.FlushPolicy `mapstructure:"fast_flushing_policy"`
	FASTMaxCapacity      int            `mapstructure:"fast_max_capacity"`

	// eFIND tuning (spec.md §4.11).
	EFINDReadBufferKind     efind.ReadBufferKind `mapstructure:"efind_read_buffer_kind"`
	EFINDWriteBufferSize    int                  `mapstructure:"efind_write_buffer_size"`
	EFINDMinFlushSize       int                  `mapstructure:"efind_min_flush_size"`
	EFINDGroupingMode       efind.GroupingMode   `mapstructure:"efind_grouping_mode"`
	EFINDStride             int                  `mapstructure:"efind_stride"`

	LogSize int    `mapstructure:"log_size"`
	LogFile string `mapstructure:"log_file"`
}

// kind maps Config.Tree to the node wire-format Kind codec/WAL encoders
// need, per spec.md §6.
func (c Config) kind() codec.Kind {
	switch c.Tree {
	case RStarTreeKind:
		return codec.RStarTree
	case HilbertTreeKind:
		return codec.HilbertTree
	case FORTreeKind:
		return codec.FORTree
	default:
		return codec.RTree
	}
}

// LoadConfig reads a YAML/JSON configuration file at path into a Config,
// matching SPEC_FULL.md §3's viper-driven configuration layer.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("index: read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("index: unmarshal config %s: %w", path, err)
	}
	return cfg, nil
}

// HeaderV1 is the persisted companion file spec.md §6 calls "one header
// file per index holding tree-info and configuration": everything a
// recovery path needs to reconstruct a façade without any other external
// state.
type HeaderV1 struct {
	Version int    `mapstructure:"version"`
	Config  Config `mapstructure:"config"`

	RootPageID    uint32   `mapstructure:"root_page_id"`
	Height        int      `mapstructure:"height"`
	EmptyPages    []uint32 `mapstructure:"empty_pages"`
	LastAllocated uint32   `mapstructure:"last_allocated"`
}

// WriteHeader persists h to path as YAML.
func WriteHeader(path string, h HeaderV1) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.Set("version", h.Version)
	v.Set("config", h.Config)
	v.Set("root_page_id", h.RootPageID)
	v.Set("height", h.Height)
	v.Set("empty_pages", h.EmptyPages)
	v.Set("last_allocated", h.LastAllocated)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("index: write header %s: %w", path, err)
	}
	return nil
}

// ReadHeader loads a previously-written HeaderV1 from path.
func ReadHeader(path string) (HeaderV1, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return HeaderV1{}, fmt.Errorf("index: read header %s: %w", path, err)
	}
	var h HeaderV1
	if err := v.Unmarshal(&h); err != nil {
		return HeaderV1{}, fmt.Errorf("index: unmarshal header %s: %w", path, err)
	}
	return h, nil
}
