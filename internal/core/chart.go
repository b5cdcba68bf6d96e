package core

type (
	// ChartDataPoint is one sample of a time series. Time is YYYY-MM-DD and
	// series are kept in ascending time order.
	ChartDataPoint struct {
		Time  string  `json:"time"`
		Value float64 `json:"value"`
	}

	TooltipEntry struct {
		SeriesID       string  `json:"seriesId"`
		SeriesName     string  `json:"seriesName"`
		Value          float64 `json:"value"`
		ValueFormatted string  `json:"valueFormatted"`
		Color          string  `json:"color"`
	}

	// TooltipData is the per-frame chart tooltip model.
	TooltipData struct {
		Time     string         `json:"time"`
		Label    string         `json:"label"`
		Entries  []TooltipEntry `json:"entries"`
		Position Point          `json:"position"`
	}

	// ProjectionDate is a calendar month expressed relative to a projection start.
	ProjectionDate struct {
		ISO        string `json:"iso"`
		Year       int    `json:"year"`
		Month      int    `json:"month"`
		Day        int    `json:"day"`
		MonthIndex int    `json:"monthIndex"`
	}

	ProjectionRange struct {
		Start       ProjectionDate `json:"start"`
		End         ProjectionDate `json:"end"`
		TotalMonths int            `json:"totalMonths"`
	}
)
