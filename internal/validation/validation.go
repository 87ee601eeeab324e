package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
)

// DateLayout is the accepted format of the historical_weather date parameter.
const DateLayout = "2006-01-02"

// City length bounds, in runes, after trimming.
const (
	MinCityLength = 1
	MaxCityLength = 100
)

// ErrInvalidCity is returned for an empty, oversized or malformed city. Handlers map it to 400 INVALID_CITY.
var ErrInvalidCity = errors.New("invalid city")

// ErrInvalidDate is returned for a missing or malformed date. Handlers map it to 400 INVALID_DATE.
var ErrInvalidDate = errors.New("invalid date")

// Letters and digits in any script, plus space, comma, hyphen, period and apostrophe
// ("St. John's", "Saint-Étienne").
var cityPattern = regexp.MustCompile(`^[\p{L}\p{N} ,.'\-]+$`)

var cityRules = []ozzo.Rule{
	ozzo.Required.Error("city is required"),
	ozzo.RuneLength(MinCityLength, MaxCityLength).Error(fmt.Sprintf("city must be between %d and %d characters", MinCityLength, MaxCityLength)),
	ozzo.Match(cityPattern).Error("city contains invalid characters"),
}

var dateRules = []ozzo.Rule{
	ozzo.Required.Error("date query parameter is required"),
	ozzo.Date(DateLayout).Error("date must be a valid date in YYYY-MM-DD format"),
}

// ValidateCity trims input and checks it against the city rules. It returns
// the trimmed city. Case normalization is left to cache key derivation.
func ValidateCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	if err := ozzo.Validate(s, cityRules...); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCity, err.Error())
	}
	return s, nil
}

// ParseDate validates a YYYY-MM-DD string and returns the unix time of that
// day's UTC midnight.
func ParseDate(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if err := ozzo.Validate(s, dateRules...); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDate, err.Error())
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return t.Unix(), nil
}
