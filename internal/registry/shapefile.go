package registry

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/model"
)

// ShapefileOptions maps shapefile attribute columns to facility fields.
// Zero-value columns fall back to the conventional names below.
type ShapefileOptions struct {
	IDColumn       string
	NameColumn     string
	CapacityColumn string
	CostColumn     string
	// DefaultCapacity is used when the capacity attribute is missing or blank.
	DefaultCapacity float64
	// DefaultFixedCost is used when the cost attribute is missing or blank.
	DefaultFixedCost float64
}

func (o *ShapefileOptions) applyDefaults() {
	if o.IDColumn == "" {
		o.IDColumn = "site_id"
	}
	if o.NameColumn == "" {
		o.NameColumn = "name"
	}
	if o.CapacityColumn == "" {
		o.CapacityColumn = "capacity"
	}
	if o.CostColumn == "" {
		o.CostColumn = "fixed_cost"
	}
}

// LoadShapefile reads candidate facility sites from a point shapefile.
// Non-point shapes and records without a usable id are skipped, not fatal.
func LoadShapefile(path string, opts ShapefileOptions) (*Registry, error) {
	opts.applyDefaults()

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		v := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(v)
	}

	var fs []model.Facility
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		id := attr(opts.IDColumn)
		if id == "" {
			skipped++
			continue
		}

		// Round-trip through go-geom keeps the coordinate convention (x=lng,
		// y=lat) consistent with the distance layer.
		p := geom.NewPointFlat(geom.XY, []float64{pt.X, pt.Y})

		capacity := parseFloatOr(attr(opts.CapacityColumn), opts.DefaultCapacity)
		cost := parseFloatOr(attr(opts.CostColumn), opts.DefaultFixedCost)

		fs = append(fs, model.Facility{
			ID:               id,
			Name:             attr(opts.NameColumn),
			Location:         model.LatLng{Lat: p.Y(), Lng: p.X()},
			BaseCapacity:     capacity,
			FixedCostPerYear: cost,
			Kind:             model.FacilityCandidate,
		})
	}

	zap.L().Info("registry: shapefile loaded",
		zap.String("path", path),
		zap.Int("sites", len(fs)),
		zap.Int("skipped", skipped),
	)

	return New(fs)
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
