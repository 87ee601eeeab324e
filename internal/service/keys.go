package service

import (
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-gateway/internal/models"
)

// Resource names. They prefix cache keys and label cache metrics.
const (
	ResourceWeather           = "weather"
	ResourceForecast          = "forecast"
	ResourceAirPollution      = "air_pollution"
	ResourceHistoricalWeather = "historical_weather"
	ResourceUVIndex           = "uv_index"
	ResourceMap               = "map"
)

// NormalizeCity trims surrounding whitespace and lower-cases city so that
// "London", " london " and "LONDON" share one cache entry.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func WeatherKey(city string) string {
	return ResourceWeather + ":" + NormalizeCity(city)
}

func ForecastKey(city string) string {
	return ResourceForecast + ":" + NormalizeCity(city)
}

func AirPollutionKey(city string) string {
	return ResourceAirPollution + ":" + NormalizeCity(city)
}

// HistoricalWeatherKey embeds the unix timestamp of the requested day.
func HistoricalWeatherKey(city string, timestamp int64) string {
	return ResourceHistoricalWeather + ":" + NormalizeCity(city) + ":" + strconv.FormatInt(timestamp, 10)
}

// UVIndexKey is keyed by coordinates, so different spellings of one place share an entry.
func UVIndexKey(coords models.Coordinates) string {
	return ResourceUVIndex + ":" + formatCoord(coords.Lat) + ":" + formatCoord(coords.Lon)
}

func MapKey(city string) string {
	return ResourceMap + ":" + NormalizeCity(city)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
