package geo

import (
	"errors"
	"testing"

	"github.com/autodash/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjector_CenterIsOrigin(t *testing.T) {
	p := NewProjector(13.405, 52.52, 10)

	lon, lat := p.LonLat(core.Position{X: 50, Y: 50})
	assert.InDelta(t, 13.405, lon, 1e-6)
	assert.InDelta(t, 52.52, lat, 1e-6)
}

func TestProjector_Orientation(t *testing.T) {
	p := NewProjector(0, 0, 10)

	x, y := p.Mercator(core.Position{X: 60, Y: 40})
	assert.InDelta(t, 100.0, x, 1e-6)
	assert.InDelta(t, 100.0, y, 1e-6, "smaller map y is further north")

	lonE, _ := p.LonLat(core.Position{X: 60, Y: 50})
	lonW, _ := p.LonLat(core.Position{X: 40, Y: 50})
	assert.Greater(t, lonE, lonW)

	_, latN := p.LonLat(core.Position{X: 50, Y: 10})
	_, latS := p.LonLat(core.Position{X: 50, Y: 90})
	assert.Greater(t, latN, latS)
}

func TestProjector_PointRoundTrip(t *testing.T) {
	p := NewProjector(2.35, 48.85, 7.5)
	pos := core.Position{X: 18, Y: 82}

	back, ok := p.PositionFromPoint(p.Point(pos))
	require.True(t, ok)
	assert.InDelta(t, pos.X, back.X, 1e-6)
	assert.InDelta(t, pos.Y, back.Y, 1e-6)
}

func TestProjector_Track(t *testing.T) {
	p := NewProjector(0, 0, 10)

	ls, err := p.Track([]core.Position{{X: 10, Y: 10}, {X: 13, Y: 14}, {X: 13, Y: 24}})
	require.NoError(t, err)
	assert.Equal(t, 3, ls.Coordinates().Length())
	assert.InDelta(t, 150.0, ls.Length(), 1e-6)
	assert.InDelta(t, 150.0, p.TrackLength([]core.Position{{X: 10, Y: 10}, {X: 13, Y: 14}, {X: 13, Y: 24}}), 1e-6)
}

func TestProjector_ShortTrack(t *testing.T) {
	p := NewProjector(0, 0, 10)

	_, err := p.Track([]core.Position{{X: 1, Y: 1}})
	assert.True(t, errors.Is(err, ErrShortTrack))
	assert.Equal(t, 0.0, p.TrackLength(nil))
}

func TestNewProjector_NonPositiveScale(t *testing.T) {
	p := NewProjector(0, 0, 0)
	x, _ := p.Mercator(core.Position{X: 51, Y: 50})
	assert.InDelta(t, 1.0, x, 1e-6)
}
