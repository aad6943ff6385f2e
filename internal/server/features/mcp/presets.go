package mcp

// Preset is an example query payload.
type Preset struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"payload"`
}

// Presets are example payloads grouped by category.
var Presets = map[string][]Preset{
	"preview": {
		{
			ID:          "landuse-preview",
			Title:       "Preview land use",
			Description: "First rows of the land use table with its schema.",
			Payload: map[string]any{
				"datasets":       []any{"landuse/landuse.parquet"},
				"limit":          25,
				"include_schema": true,
			},
		},
	},
	"joins": {
		{
			ID:          "landuse-soils",
			Title:       "Land use joined to soils",
			Description: "Hillslope land cover alongside soil texture.",
			Payload: map[string]any{
				"datasets": []any{"landuse/landuse.parquet", "soils/soils.parquet"},
				"joins": []any{
					map[string]any{"left": "landuse", "right": "soils", "on": []any{"topaz_id"}},
				},
				"columns": []any{
					"landuse.topaz_id AS topaz_id",
					`landuse."desc" AS landuse`,
					"soils.simple_texture AS soil_texture",
				},
				"limit": 100,
			},
		},
	},
	"aggregations": {
		{
			ID:          "daily-runoff",
			Title:       "Daily runoff and sediment",
			Description: "Watershed totals of hillslope pass output per simulation day.",
			Payload: map[string]any{
				"datasets": []any{"wepp/output/interchange/H.pass.parquet"},
				"group_by": []any{"year", "month", "sim_day_index"},
				"aggregations": []any{
					map[string]any{"fn": "sum", "column": "runoff", "alias": "runoff"},
					map[string]any{"fn": "sum", "column": "sedcon_1", "alias": "sediment"},
				},
				"order_by":    []any{"year", "month", "sim_day_index"},
				"include_sql": true,
			},
		},
	},
	"timeseries": {
		{
			ID:          "water-balance",
			Title:       "Daily water balance",
			Description: "Runoff and precipitation as chart-ready series, skipping the spin-up year.",
			Payload: map[string]any{
				"datasets": []any{"wepp/output/interchange/totalwatsed3.parquet"},
				"columns":  []any{"year", "runoff", "precipitation"},
				"computed_columns": []any{
					map[string]any{"alias": "date", "date_parts": map[string]any{"year": "year", "month": "month", "day": "day"}},
				},
				"order_by": []any{"year", "month", "day"},
				"reshape": map[string]any{
					"type":                 "timeseries",
					"index":                map[string]any{"column": "date"},
					"year_column":          "year",
					"exclude_year_indexes": []any{0},
					"series": []any{
						map[string]any{"column": "runoff", "label": "Runoff"},
						map[string]any{"column": "precipitation", "label": "Precipitation"},
					},
					"compact": true,
				},
			},
		},
	},
}
