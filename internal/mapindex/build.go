package mapindex

import (
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/iamNilotpal/facet/internal/bitmap"
	"github.com/iamNilotpal/facet/internal/hashmap"
	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/pointvalues"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/filesys"
)

// Build materializes a map index at cfg.Path from both directions of the
// relation: the dense per-point value lists and the value-to-points map.
// The config sidecar is written first via atomic rename; the three mmapped
// structures are materialized concurrently, then the result is opened.
// Points with no values are tombstoned in the fresh bitmap.
func Build[K Key](cfg Config, pointToValues [][]K, valuesToPoints map[K][]types.PointOffsetType) (*Index[K], error) {
	if cfg.Path == "" {
		return nil, errors.NewRequiredFieldError("path")
	}

	if err := filesys.CreateDir(cfg.Path, 0755, true); err != nil {
		return nil, err
	}

	total := uint64(0)
	for _, values := range pointToValues {
		total += uint64(len(values))
	}
	if err := filesys.AtomicWriteJSON(
		filepath.Join(cfg.Path, ConfigFileName),
		config{TotalKeyValuePairs: total},
	); err != nil {
		return nil, err
	}

	var g errgroup.Group

	g.Go(func() error {
		entries := make([]hashmap.Entry, 0, len(valuesToPoints))
		for value, ids := range valuesToPoints {
			entries = append(entries, hashmap.Entry{Key: keyBytes(value), Values: ids})
		}
		return hashmap.Build(filepath.Join(cfg.Path, HashmapFileName), entries)
	})

	g.Go(func() error {
		return pointvalues.Build(pointvalues.Config{Dir: cfg.Path}, pvCodec[K](), pointToValues)
	})

	g.Go(func() error {
		region, err := mmapx.Create(
			filepath.Join(cfg.Path, DeletedFileName),
			int64(bitmap.WordLengthFor(len(pointToValues))),
		)
		if err != nil {
			return err
		}

		bits := bitmap.NewBitSlice(region.Bytes())
		for id, values := range pointToValues {
			if len(values) == 0 {
				bits.Set(id, true)
			}
		}
		if err := region.Flush(); err != nil {
			region.Close()
			return err
		}
		return region.Close()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cfg.Logger != nil {
		if size, err := filesys.FileSize(filepath.Join(cfg.Path, HashmapFileName)); err == nil {
			cfg.Logger.Infow(
				"Built map index",
				"path", cfg.Path,
				"points", len(pointToValues),
				"uniqueValues", len(valuesToPoints),
				"keyValuePairs", total,
				"hashmapSize", humanSize(size),
			)
		}
	}

	return Open[K](cfg)
}

// Builder is the bulk construction pipeline: it accumulates both directions
// of the relation in memory and materializes them once on finalize. Point id
// sets are collected in roaring bitmaps, which deduplicate on insert and
// emit the sorted arrays the hashmap invariant requires.
type Builder[K Key] struct {
	cfg            Config
	pointToValues  [][]K
	valuesToPoints map[K]*roaring.Bitmap
}

// NewBuilder creates a builder targeting cfg.Path.
func NewBuilder[K Key](cfg Config) *Builder[K] {
	return &Builder[K]{
		cfg:            cfg,
		valuesToPoints: make(map[K]*roaring.Bitmap),
	}
}

// AddPoint ingests the values of one point. Ids may arrive in any order;
// points never added keep empty value lists and end up tombstoned at build.
func (b *Builder[K]) AddPoint(id types.PointOffsetType, values []K) {
	for int(id) >= len(b.pointToValues) {
		b.pointToValues = append(b.pointToValues, nil)
	}

	stored := make([]K, len(values))
	copy(stored, values)
	b.pointToValues[id] = stored

	for _, v := range values {
		set, ok := b.valuesToPoints[v]
		if !ok {
			set = roaring.New()
			b.valuesToPoints[v] = set
		}
		set.Add(id)
	}
}

// Finalize materializes the index files and opens the result.
func (b *Builder[K]) Finalize() (*Index[K], error) {
	valuesToPoints := make(map[K][]types.PointOffsetType, len(b.valuesToPoints))
	for value, set := range b.valuesToPoints {
		valuesToPoints[value] = set.ToArray()
	}
	return Build(b.cfg, b.pointToValues, valuesToPoints)
}

// pvCodec picks the packed value representation for the key type.
func pvCodec[K Key]() pointvalues.Codec[K] {
	var zero K
	switch any(zero).(type) {
	case int64:
		return pointvalues.Codec[K]{
			FixedSize: pointvalues.Int64Codec.FixedSize,
			Append: func(dst []byte, v K) []byte {
				return pointvalues.Int64Codec.Append(dst, any(v).(int64))
			},
			Decode: func(data []byte) (K, int) {
				v, n := pointvalues.Int64Codec.Decode(data)
				return any(v).(K), n
			},
		}
	default:
		return pointvalues.Codec[K]{
			Append: func(dst []byte, v K) []byte {
				return pointvalues.StringCodec.Append(dst, any(v).(string))
			},
			Decode: func(data []byte) (K, int) {
				v, n := pointvalues.StringCodec.Decode(data)
				return any(v).(K), n
			},
		}
	}
}
