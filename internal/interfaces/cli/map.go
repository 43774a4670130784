package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

// ClusterRow is one city centroid as printed by `clusters`.
type ClusterRow struct {
	City  string  `json:"city"`
	Plots int     `json:"plots"`
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
}

// ClusterTable renders cluster rows.
type ClusterTable []ClusterRow

func (t ClusterTable) TableHeaders() []string { return []string{"City", "Plots", "Lng", "Lat"} }

func (t ClusterTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{r.City, strconv.Itoa(r.Plots), formatCoord(r.Lng), formatCoord(r.Lat)})
	}
	return rows
}

// PlotRow is one plot as printed by `plots`.
type PlotRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Area        float64 `json:"area"`
	Status      string  `json:"status"`
	Electricity string  `json:"electricity,omitempty"`
	Lng         float64 `json:"lng"`
	Lat         float64 `json:"lat"`
}

// PlotTable renders plot rows.
type PlotTable []PlotRow

func (t PlotTable) TableHeaders() []string {
	return []string{"ID", "Title", "Area", "Status", "Electricity", "Lng", "Lat"}
}

func (t PlotTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID, r.Title, strconv.FormatFloat(r.Area, 'f', -1, 64), colorStatus(r.Status),
			r.Electricity, formatCoord(r.Lng), formatCoord(r.Lat),
		})
	}
	return rows
}

// CityTable renders city summaries.
type CityTable []common.CitySummary

func (t CityTable) TableHeaders() []string { return []string{"City", "Plots", "Lng", "Lat"} }

func (t CityTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		rows = append(rows, []string{c.City, strconv.Itoa(c.PlotCount), formatCoord(c.Lng), formatCoord(c.Lat)})
	}
	return rows
}

func newClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters",
		Short: "List city clusters with their plot counts and centroids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cliCtx.remote()
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			fc, err := api.Clusters(ctx)
			if err != nil {
				return err
			}
			rows := ClusterRows(fc)
			cities := make([]string, len(rows))
			for i, r := range rows {
				cities[i] = r.City
			}
			for _, group := range SimilarCityNames(cities) {
				PrintWarning(cmd, fmt.Sprintf("city names differ only by case or spacing: %s", quoteAll(group)))
			}
			cliCtx.Logger.Debug("fetched clusters", logging.Int("count", len(rows)))
			return PrintResult(cmd, rows)
		},
	}
}

func newCitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List cities with their plot counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cliCtx.remote()
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			cities, err := api.Cities(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, CityTable(cities))
		},
	}
}

func newPlotsCmd() *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "plots",
		Short: "List the plots of one city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(city) == "" {
				return errors.InvalidParam("--city is required")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cliCtx.remote()
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			fc, err := api.Plots(ctx, city)
			if err != nil {
				return err
			}
			rows := PlotRows(fc)
			if len(rows) == 0 {
				PrintWarning(cmd, fmt.Sprintf("no plots in %q (city names are case sensitive)", city))
			}
			return PrintResult(cmd, rows)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "city name exactly as listed by `clusters` (required)")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func newPropertyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "property ID",
		Short: "Show one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			api, err := cliCtx.remote()
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			p, err := api.Property(ctx, args[0])
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, p)
			}
			return PrintResult(cmd, propertyTable{p})
		},
	}
}

type propertyTable struct{ p *common.Property }

func (t propertyTable) TableHeaders() []string { return []string{"Field", "Value"} }

func (t propertyTable) TableRows() [][]string {
	p := t.p
	rows := [][]string{
		{"ID", p.ID},
		{"Slug", p.Slug},
		{"Title", p.Title},
		{"City", p.City},
		{"Area", strconv.FormatFloat(p.Area, 'f', -1, 64)},
		{"Status", colorStatus(p.Status)},
		{"Image", p.Image},
	}
	for _, u := range []struct{ label, value string }{
		{"Electricity", p.Electricity}, {"Gas", p.Gas}, {"Water", p.Water},
	} {
		if u.value != "" {
			rows = append(rows, []string{u.label, u.value})
		}
	}
	return rows
}

// ClusterRows flattens a cluster collection.  Features without a point
// geometry are skipped.
func ClusterRows(fc *geojson.FeatureCollection) ClusterTable {
	if fc == nil {
		return ClusterTable{}
	}
	rows := make(ClusterTable, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := featurePoint(f)
		if !ok {
			continue
		}
		rows = append(rows, ClusterRow{
			City:  f.Properties.MustString("city", ""),
			Plots: f.Properties.MustInt("plotCount", 0),
			Lng:   pt.Lon(),
			Lat:   pt.Lat(),
		})
	}
	return rows
}

// PlotRows flattens a plot collection.
func PlotRows(fc *geojson.FeatureCollection) PlotTable {
	if fc == nil {
		return PlotTable{}
	}
	rows := make(PlotTable, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := featurePoint(f)
		if !ok {
			continue
		}
		rows = append(rows, PlotRow{
			ID:          f.Properties.MustString("id", ""),
			Title:       f.Properties.MustString("title", ""),
			Area:        f.Properties.MustFloat64("area", 0),
			Status:      f.Properties.MustString("status", ""),
			Electricity: f.Properties.MustString("electricity", ""),
			Lng:         pt.Lon(),
			Lat:         pt.Lat(),
		})
	}
	return rows
}

func featurePoint(f *geojson.Feature) (orb.Point, bool) {
	if f == nil {
		return orb.Point{}, false
	}
	pt, ok := f.Geometry.(orb.Point)
	return pt, ok
}

// SimilarCityNames groups names that collide once case and surrounding or
// repeated whitespace are ignored.  Clusters are keyed on the literal name,
// so each group shows up on the map as separate markers.
func SimilarCityNames(names []string) [][]string {
	groups := make(map[string][]string)
	for _, n := range names {
		key := strings.ToLower(strings.Join(strings.Fields(n), " "))
		groups[key] = append(groups[key], n)
	}
	var out [][]string
	for _, g := range groups {
		if len(g) > 1 {
			sort.Strings(g)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = strconv.Quote(n)
	}
	return strings.Join(q, ", ")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

func colorStatus(s string) string {
	switch s {
	case "available":
		return color.GreenString(s)
	case "reserved":
		return color.YellowString(s)
	case "sold":
		return color.RedString(s)
	}
	return s
}

//Personal.AI order the ending
