package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

func TestGeoExportPoints_SkipsRowsWithoutCentroid(t *testing.T) {
	rows := []model.GeographicRevenue{
		{Region: "North America", FiscalYear: 2024, Revenue: 1000, Centroid: &model.GeoPoint{Lon: -98.5, Lat: 39.8}},
		{Region: "Unmapped Region", FiscalYear: 2024, Revenue: 200},
	}

	points := geoExportPoints(rows)
	require.Len(t, points, 1)
	assert.Equal(t, "North America", points[0].Region)
	assert.Equal(t, 2024, points[0].FiscalYear)
	assert.Equal(t, 1000.0, points[0].Revenue)
	assert.InDelta(t, -98.5, points[0].Geom.X(), 1e-9)
	assert.InDelta(t, 39.8, points[0].Geom.Y(), 1e-9)
}

func TestGeoExportPoints_EmptyInputReturnsEmpty(t *testing.T) {
	points := geoExportPoints(nil)
	assert.Empty(t, points)
}
