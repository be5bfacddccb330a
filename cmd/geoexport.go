package main

import (
	"encoding/json"
	"fmt"
	"os"

	shp "github.com/jonas-p/go-shp"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/research-cli/internal/model"
)

var (
	geoExportInput  string
	geoExportOutput string
)

var geoExportCmd = &cobra.Command{
	Use:   "geo-export",
	Short: "Export one filing's geographic revenue as a point shapefile",
	Long:  "Reads one extraction record's consolidated geographic revenue rows and writes every row with a centroid to a .shp/.shx/.dbf triple, for loading into GIS tooling. Rows without a centroid are skipped — geocoding a region name happens at extraction time, not here.",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(geoExportInput)
		if err != nil {
			return fmt.Errorf("read extraction record: %w", err)
		}
		var rec model.ExtractionRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("parse extraction record: %w", err)
		}

		points := geoExportPoints(rec.Consolidated.GeographicRevenue)
		if len(points) == 0 {
			return fmt.Errorf("geo-export: no geographic revenue rows with a centroid in %s", geoExportInput)
		}

		if err := writeGeoShapefile(geoExportOutput, points); err != nil {
			return fmt.Errorf("write shapefile: %w", err)
		}

		fmt.Printf("wrote %d points to %s\n", len(points), geoExportOutput)
		return nil
	},
}

// geoExportPoint pairs one geographic revenue row with the geom.Point its
// GeoPoint centroid converts to — the canonical geometry representation
// model.GeoPoint's doc comment describes this CLI as producing.
type geoExportPoint struct {
	Region     string
	FiscalYear int
	Revenue    float64
	Geom       *geom.Point
}

func geoExportPoints(rows []model.GeographicRevenue) []geoExportPoint {
	var out []geoExportPoint
	for _, row := range rows {
		if row.Centroid == nil {
			continue
		}
		out = append(out, geoExportPoint{
			Region:     row.Region,
			FiscalYear: row.FiscalYear,
			Revenue:    row.Revenue,
			Geom:       geom.NewPointFlat(geom.XY, []float64{row.Centroid.Lon, row.Centroid.Lat}),
		})
	}
	return out
}

// writeGeoShapefile writes points as a point shapefile with region, fiscal
// year, and revenue attribute columns.
func writeGeoShapefile(path string, points []geoExportPoint) error {
	writer, err := shp.Create(path, shp.POINT)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	writer.SetFields([]shp.Field{
		shp.StringField("REGION", 64),
		shp.NumberField("FISCALYEAR", 4),
		shp.FloatField("REVENUE", 18, 2),
	})

	for _, p := range points {
		n := int(writer.Write(&shp.Point{X: p.Geom.X(), Y: p.Geom.Y()}))
		_ = writer.WriteAttribute(n, 0, p.Region)
		_ = writer.WriteAttribute(n, 1, p.FiscalYear)
		_ = writer.WriteAttribute(n, 2, p.Revenue)
	}
	return nil
}

func init() {
	geoExportCmd.Flags().StringVar(&geoExportInput, "in", "", "path to an extraction record JSON file")
	geoExportCmd.Flags().StringVar(&geoExportOutput, "out", "", "output .shp path")
	_ = geoExportCmd.MarkFlagRequired("in")
	_ = geoExportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(geoExportCmd)
}
