package models

import "encoding/json"

// Coordinates is a geocoded latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherResponse is the formatted current-conditions payload served by /weather/{city}.
type WeatherResponse struct {
	City             string `json:"city"`
	Coordinates      string `json:"coordinates"`
	Temperature      string `json:"temperature"`
	Weather          string `json:"weather"`
	Humidity         string `json:"humidity"`
	Pressure         string `json:"pressure"`
	Wind             string `json:"wind"`
	Cloudiness       string `json:"cloudiness"`
	Rain             string `json:"rain"`
	Visibility       string `json:"visibility"`
	DataCalculatedAt string `json:"data_calculated_at"`
	Sunrise          string `json:"sunrise"`
	Sunset           string `json:"sunset"`
}

// ForecastEntry is one forecast interval.
type ForecastEntry struct {
	Datetime    string `json:"datetime"`
	Temperature string `json:"temperature"`
	Weather     string `json:"weather"`
	Humidity    string `json:"humidity"`
	Pressure    string `json:"pressure"`
	Wind        string `json:"wind"`
	Cloudiness  string `json:"cloudiness"`
	Rain        string `json:"rain"`
	Visibility  string `json:"visibility"`
}

// ForecastResponse keeps entries in provider order.
type ForecastResponse struct {
	City        string          `json:"city"`
	Coordinates string          `json:"coordinates"`
	Forecast    []ForecastEntry `json:"forecast"`
}

// PollutantLevels relabels provider component codes with descriptive keys.
type PollutantLevels struct {
	CarbonMonoxide   string `json:"carbon_monoxide"`
	NitrogenMonoxide string `json:"nitrogen_monoxide"`
	NitrogenDioxide  string `json:"nitrogen_dioxide"`
	Ozone            string `json:"ozone"`
	SulfurDioxide    string `json:"sulfur_dioxide"`
	FineParticles    string `json:"fine_particles"`
	CoarseParticles  string `json:"coarse_particles"`
	Ammonia          string `json:"ammonia"`
}

type AirPollutionResponse struct {
	AirQualityIndex int             `json:"air_quality_index"`
	AirQualityLevel string          `json:"air_quality_level"`
	PollutantLevels PollutantLevels `json:"pollutant_levels"`
}

type HistoricalWeatherResponse struct {
	Datetime    string `json:"datetime"`
	Temperature string `json:"temperature"`
	Weather     string `json:"weather"`
	Humidity    string `json:"humidity"`
	Pressure    string `json:"pressure"`
	Wind        string `json:"wind"`
	Cloudiness  string `json:"cloudiness"`
	Rain        string `json:"rain"`
	Visibility  string `json:"visibility"`
}

type UVIndexResponse struct {
	UVIndex json.Number `json:"uv_index"`
	Date    string      `json:"date"`
}

// MapResponse is the geocoded position of a city.
type MapResponse struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
