// Package geo anchors the 0..100 perception map to the earth.
//
// Map coordinates are projected onto EPSG:3857 around a configurable origin
// (the map centre) and converted to WGS84 for export. Geometry stored in the
// database stays in 3857 so SQLite, which has no spatial support, can still
// round-trip it as WKB.
package geo

import (
	"errors"
	"fmt"

	"github.com/autodash/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrShortTrack is returned when a track has fewer than two positions.
var ErrShortTrack = errors.New("track needs at least 2 positions")

// MapCenter is the map coordinate placed on the origin.
const MapCenter = 50.0

// Projector converts map positions to projected and geographic coordinates.
type Projector struct {
	originX, originY float64
	metersPerUnit    float64
	toLonLat         func(a, b, c float64) (float64, float64, float64)
}

// NewProjector anchors the map centre at (lon, lat). metersPerUnit scales map
// units; a non-positive value falls back to 1.
func NewProjector(originLon, originLat, metersPerUnit float64) *Projector {
	if metersPerUnit <= 0 {
		metersPerUnit = 1
	}
	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(4326, 3857)(originLon, originLat, 0)
	return &Projector{
		originX:       x,
		originY:       y,
		metersPerUnit: metersPerUnit,
		toLonLat:      epsg.Transform(3857, 4326),
	}
}

// Mercator returns EPSG:3857 coordinates. Map y grows southward.
func (p *Projector) Mercator(pos core.Position) (x, y float64) {
	x = p.originX + (pos.X-MapCenter)*p.metersPerUnit
	y = p.originY - (pos.Y-MapCenter)*p.metersPerUnit
	return x, y
}

// LonLat returns WGS84 longitude and latitude.
func (p *Projector) LonLat(pos core.Position) (lon, lat float64) {
	x, y := p.Mercator(pos)
	lon, lat, _ = p.toLonLat(x, y, 0)
	return lon, lat
}

// Point returns pos as a 3857 point.
func (p *Projector) Point(pos core.Position) geom.Point {
	x, y := p.Mercator(pos)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
}

// Track returns the positions as a 3857 line string.
func (p *Projector) Track(positions []core.Position) (geom.LineString, error) {
	if len(positions) < 2 {
		return geom.LineString{}, fmt.Errorf("%w: got %d", ErrShortTrack, len(positions))
	}
	flat := make([]float64, 0, len(positions)*2)
	for _, pos := range positions {
		x, y := p.Mercator(pos)
		flat = append(flat, x, y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}

// TrackLength returns the length of the track in projected metres, 0 for short tracks.
func (p *Projector) TrackLength(positions []core.Position) float64 {
	ls, err := p.Track(positions)
	if err != nil {
		return 0
	}
	return ls.Length()
}

// PositionFromPoint inverts Point. Empty points return ok=false.
func (p *Projector) PositionFromPoint(pt geom.Point) (core.Position, bool) {
	xy, ok := pt.XY()
	if !ok {
		return core.Position{}, false
	}
	return core.Position{
		X: (xy.X-p.originX)/p.metersPerUnit + MapCenter,
		Y: MapCenter - (xy.Y-p.originY)/p.metersPerUnit,
	}, true
}
