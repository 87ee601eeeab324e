package models

import "encoding/json"

// Typed OpenWeatherMap payloads. Only consumed fields are modelled; fields the
// provider may omit are pointers or slices so absence is explicit. Displayed
// readings are json.Number so an integer stays "21" and a float stays "21.0".

type ProviderCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type ProviderMain struct {
	Temp      json.Number `json:"temp"`
	FeelsLike json.Number `json:"feels_like"`
	Pressure  int         `json:"pressure"`
	Humidity  int         `json:"humidity"`
}

type ProviderWind struct {
	Speed json.Number `json:"speed"`
	Deg   int         `json:"deg"`
}

type ProviderClouds struct {
	All int `json:"all"`
}

// ProviderPrecipitation is the optional rain block keyed by accumulation window.
type ProviderPrecipitation struct {
	OneHour   *json.Number `json:"1h,omitempty"`
	ThreeHour *json.Number `json:"3h,omitempty"`
}

// CurrentWeatherPayload is the /data/2.5/weather response.
type CurrentWeatherPayload struct {
	Coord      Coordinates            `json:"coord"`
	Weather    []ProviderCondition    `json:"weather"`
	Main       ProviderMain           `json:"main"`
	Wind       ProviderWind           `json:"wind"`
	Clouds     ProviderClouds         `json:"clouds"`
	Rain       *ProviderPrecipitation `json:"rain,omitempty"`
	Visibility *int                   `json:"visibility,omitempty"`
	Dt         int64                  `json:"dt"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

// ForecastItem is one entry of the /data/2.5/forecast list.
type ForecastItem struct {
	Dt         int64                  `json:"dt"`
	Main       ProviderMain           `json:"main"`
	Weather    []ProviderCondition    `json:"weather"`
	Wind       ProviderWind           `json:"wind"`
	Clouds     ProviderClouds         `json:"clouds"`
	Rain       *ProviderPrecipitation `json:"rain,omitempty"`
	Visibility *int                   `json:"visibility,omitempty"`
}

type ForecastPayload struct {
	List []ForecastItem `json:"list"`
	City struct {
		Name    string      `json:"name"`
		Country string      `json:"country"`
		Coord   Coordinates `json:"coord"`
	} `json:"city"`
}

type AirPollutionComponents struct {
	CO   json.Number `json:"co"`
	NO   json.Number `json:"no"`
	NO2  json.Number `json:"no2"`
	O3   json.Number `json:"o3"`
	SO2  json.Number `json:"so2"`
	PM25 json.Number `json:"pm2_5"`
	PM10 json.Number `json:"pm10"`
	NH3  json.Number `json:"nh3"`
}

type AirPollutionSample struct {
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components AirPollutionComponents `json:"components"`
	Dt         int64                  `json:"dt"`
}

type AirPollutionPayload struct {
	List []AirPollutionSample `json:"list"`
}

// GeocodingResult is one element of the /geo/1.0/direct array.
type GeocodingResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

type UVIndexPayload struct {
	Lat   float64     `json:"lat"`
	Lon   float64     `json:"lon"`
	Date  int64       `json:"date"`
	Value json.Number `json:"value"`
}

// HistoricalPayload is the /onecall/timemachine response.
type HistoricalPayload struct {
	Current struct {
		Dt         int64                  `json:"dt"`
		Temp       json.Number            `json:"temp"`
		FeelsLike  json.Number            `json:"feels_like"`
		Pressure   int                    `json:"pressure"`
		Humidity   int                    `json:"humidity"`
		Clouds     int                    `json:"clouds"`
		Visibility *int                   `json:"visibility,omitempty"`
		WindSpeed  json.Number            `json:"wind_speed"`
		WindDeg    int                    `json:"wind_deg"`
		Weather    []ProviderCondition    `json:"weather"`
		Rain       *ProviderPrecipitation `json:"rain,omitempty"`
	} `json:"current"`
}
