package types

// DateLayout is the calendar-day format measurement dates are stored in.
const DateLayout = "2006-01-02"

type Station struct {
	ID        string  `json:"station"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// PrecipitationReading carries a nil Precipitation when nothing was recorded
// for the day; it encodes as null, never 0.
type PrecipitationReading struct {
	Date          string   `json:"date"`
	Precipitation *float64 `json:"precipitation"`
}

type TemperatureReading struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
}

type TemperatureSummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// StationActivity is a station with its total measurement count.
type StationActivity struct {
	ID           string `json:"station"`
	Observations int    `json:"count"`
}
