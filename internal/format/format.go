// Package format turns typed provider payloads into the human-readable
// response objects served to clients. Every function is pure.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kjstillabower/weather-gateway/internal/models"
)

// TimeLayout renders provider epoch seconds as UTC date-times.
const TimeLayout = "2006-01-02 15:04:05"

// MaxForecastEntries caps the number of forecast intervals returned.
const MaxForecastEntries = 5

// ErrNoPollutionData is returned when the provider answers with an empty list.
var ErrNoPollutionData = errors.New("no air pollution data in provider response")

// Timestamp formats epoch seconds as "YYYY-MM-DD HH:MM:SS" in UTC.
func Timestamp(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(TimeLayout)
}

// AQILabel maps the 1-5 air quality index to its ordinal label.
func AQILabel(aqi int) string {
	switch aqi {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}

// Weather formats a current-conditions payload.
func Weather(p models.CurrentWeatherPayload) models.WeatherResponse {
	return models.WeatherResponse{
		City:             p.Name + ", " + p.Sys.Country,
		Coordinates:      coordinates(p.Coord),
		Temperature:      temperature(p.Main.Temp, p.Main.FeelsLike),
		Weather:          description(p.Weather),
		Humidity:         percent(p.Main.Humidity),
		Pressure:         pressure(p.Main.Pressure),
		Wind:             wind(p.Wind.Speed, p.Wind.Deg),
		Cloudiness:       percent(p.Clouds.All),
		Rain:             rainLastHour(p.Rain),
		Visibility:       visibility(p.Visibility),
		DataCalculatedAt: Timestamp(p.Dt),
		Sunrise:          Timestamp(p.Sys.Sunrise),
		Sunset:           Timestamp(p.Sys.Sunset),
	}
}

// Forecast formats a forecast payload, keeping provider order and at most
// MaxForecastEntries intervals.
func Forecast(p models.ForecastPayload) models.ForecastResponse {
	items := p.List
	if len(items) > MaxForecastEntries {
		items = items[:MaxForecastEntries]
	}
	entries := make([]models.ForecastEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, models.ForecastEntry{
			Datetime:    Timestamp(it.Dt),
			Temperature: temperature(it.Main.Temp, it.Main.FeelsLike),
			Weather:     description(it.Weather),
			Humidity:    percent(it.Main.Humidity),
			Pressure:    pressure(it.Main.Pressure),
			Wind:        wind(it.Wind.Speed, it.Wind.Deg),
			Cloudiness:  percent(it.Clouds.All),
			Rain:        rainLastThreeHours(it.Rain),
			Visibility:  visibility(it.Visibility),
		})
	}
	return models.ForecastResponse{
		City:        p.City.Name + ", " + p.City.Country,
		Coordinates: coordinates(p.City.Coord),
		Forecast:    entries,
	}
}

// AirPollution formats the first sample of an air pollution payload.
func AirPollution(p models.AirPollutionPayload) (models.AirPollutionResponse, error) {
	if len(p.List) == 0 {
		return models.AirPollutionResponse{}, ErrNoPollutionData
	}
	sample := p.List[0]
	c := sample.Components
	return models.AirPollutionResponse{
		AirQualityIndex: sample.Main.AQI,
		AirQualityLevel: AQILabel(sample.Main.AQI),
		PollutantLevels: models.PollutantLevels{
			CarbonMonoxide:   concentration(c.CO),
			NitrogenMonoxide: concentration(c.NO),
			NitrogenDioxide:  concentration(c.NO2),
			Ozone:            concentration(c.O3),
			SulfurDioxide:    concentration(c.SO2),
			FineParticles:    concentration(c.PM25),
			CoarseParticles:  concentration(c.PM10),
			Ammonia:          concentration(c.NH3),
		},
	}, nil
}

// HistoricalWeather formats the "current" block of a timemachine payload.
func HistoricalWeather(p models.HistoricalPayload) models.HistoricalWeatherResponse {
	cur := p.Current
	return models.HistoricalWeatherResponse{
		Datetime:    Timestamp(cur.Dt),
		Temperature: temperature(cur.Temp, cur.FeelsLike),
		Weather:     description(cur.Weather),
		Humidity:    percent(cur.Humidity),
		Pressure:    pressure(cur.Pressure),
		Wind:        wind(cur.WindSpeed, cur.WindDeg),
		Cloudiness:  percent(cur.Clouds),
		Rain:        rainLastHour(cur.Rain),
		Visibility:  visibility(cur.Visibility),
	}
}

func UVIndex(p models.UVIndexPayload) models.UVIndexResponse {
	return models.UVIndexResponse{
		UVIndex: p.Value,
		Date:    Timestamp(p.Date),
	}
}

// Number renders a provider reading as the provider typed it: integers as
// written, floats in shortest round-trip form with at least one fractional
// digit. A missing reading renders as "0".
func Number(n json.Number) string {
	s := n.String()
	if s == "" {
		return "0"
	}
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func coordinates(c models.Coordinates) string {
	return "(" + coord(c.Lat) + ", " + coord(c.Lon) + ")"
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func temperature(temp, feelsLike json.Number) string {
	return fmt.Sprintf("%s°C (Feels like: %s°C)", Number(temp), Number(feelsLike))
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}

func pressure(v int) string {
	return strconv.Itoa(v) + " hPa"
}

func wind(speed json.Number, deg int) string {
	return fmt.Sprintf("%s m/s at %d°", Number(speed), deg)
}

func concentration(v json.Number) string {
	return Number(v) + " µg/m³"
}

func rainLastHour(r *models.ProviderPrecipitation) string {
	var mm json.Number
	if r != nil && r.OneHour != nil {
		mm = *r.OneHour
	}
	return Number(mm) + " mm in the last hour"
}

func rainLastThreeHours(r *models.ProviderPrecipitation) string {
	var mm json.Number
	if r != nil && r.ThreeHour != nil {
		mm = *r.ThreeHour
	}
	return Number(mm) + " mm in the last 3 hours"
}

func visibility(v *int) string {
	if v == nil {
		return "N/A meters"
	}
	return strconv.Itoa(*v) + " meters"
}

func description(conds []models.ProviderCondition) string {
	if len(conds) == 0 {
		return ""
	}
	return capitalize(conds[0].Description)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
