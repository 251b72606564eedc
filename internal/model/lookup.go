package model

// Categorical lookup tables for Land Registry price paid data.
// These are fixed reference data, not configuration.

// PropertyTypeNames maps Land Registry property type codes to display names.
var PropertyTypeNames = map[string]string{
	"D": "Detached",
	"S": "Semi-Detached",
	"T": "Terraced",
	"F": "Flat/Maisonette",
	"O": "Other",
}

// OldNewNames maps the old/new build indicator to display names.
var OldNewNames = map[string]string{
	"Y": "New Build",
	"N": "Established",
}

// LondonRegions maps London borough district names (upper case, as they
// appear in the price paid data) to a coarse region label.
var LondonRegions = map[string]string{
	// Central
	"CITY OF LONDON":         "Central",
	"WESTMINSTER":            "Central",
	"CAMDEN":                 "Central",
	"ISLINGTON":              "Central",
	"KENSINGTON AND CHELSEA": "Central",
	"LAMBETH":                "Central",
	"SOUTHWARK":              "Central",
	"TOWER HAMLETS":          "Central",

	// North
	"BARNET":         "North",
	"ENFIELD":        "North",
	"HARINGEY":       "North",
	"WALTHAM FOREST": "North",

	// South
	"BROMLEY":   "South",
	"CROYDON":   "South",
	"LEWISHAM":  "South",
	"MERTON":    "South",
	"SUTTON":    "South",
	"GREENWICH": "South",

	// East
	"BARKING AND DAGENHAM": "East",
	"BEXLEY":               "East",
	"HAVERING":             "East",
	"NEWHAM":               "East",
	"REDBRIDGE":            "East",
	"HACKNEY":              "East",

	// West
	"BRENT":                "West",
	"EALING":               "West",
	"HAMMERSMITH AND FULHAM": "West",
	"HARROW":               "West",
	"HILLINGDON":           "West",
	"HOUNSLOW":             "West",
	"RICHMOND UPON THAMES": "West",
	"KINGSTON UPON THAMES": "West",
	"WANDSWORTH":           "West",
}

// PropertyTypeName returns the display name for a property type code,
// or the code itself if it is not recognised.
func PropertyTypeName(code string) string {
	if name, ok := PropertyTypeNames[code]; ok {
		return name
	}
	return code
}

// Region returns the London region for a borough district name, or
// "Unknown" for districts outside the lookup.
func Region(district string) string {
	if r, ok := LondonRegions[district]; ok {
		return r
	}
	return "Unknown"
}

// priceBandEdges are the upper bounds (exclusive) of each price band.
// The last band is open-ended.
var priceBandEdges = []float64{250_000, 500_000, 750_000, 1_000_000, 2_000_000}

// priceBandLabels has one more entry than priceBandEdges for the
// open-ended top band.
var priceBandLabels = []string{
	"Under £250k",
	"£250k-£500k",
	"£500k-£750k",
	"£750k-£1M",
	"£1M-£2M",
	"Over £2M",
}

// PriceBand classifies a price into one of the fixed histogram bands.
func PriceBand(price float64) string {
	for i, edge := range priceBandEdges {
		if price < edge {
			return priceBandLabels[i]
		}
	}
	return priceBandLabels[len(priceBandLabels)-1]
}

// PriceBandLabels returns the band labels in ascending price order.
// Callers use this to present histogram buckets in a stable order.
func PriceBandLabels() []string {
	return append([]string(nil), priceBandLabels...)
}
