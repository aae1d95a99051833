package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Weather is the subset of a weatherapi.com "current" block the analyst uses.
// Every field is optional. Numbers keep the text the client sent, so 25.0
// reaches the prompt as "25.0" and 25 as "25".
type Weather struct {
	TempC      *json.Number `json:"temp_c"`
	Humidity   *json.Number `json:"humidity"`
	PrecipMM   *json.Number `json:"precip_mm"`
	WindKPH    *json.Number `json:"wind_kph"`
	WindDir    *string      `json:"wind_dir"`
	UV         *json.Number `json:"uv"`
	DewpointC  *json.Number `json:"dewpoint_c"`
	PressureMB *json.Number `json:"pressure_mb"`
	Cloud      *json.Number `json:"cloud"`
	Condition  *struct {
		Text *string `json:"text"`
	} `json:"condition"`
}

// ParseWeather decodes the weather JSON sent by the client.
func ParseWeather(raw string) (*Weather, error) {
	var w Weather
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}
	return &w, nil
}

// Format renders the present fields as "Label: value" lines in a fixed order.
func (w *Weather) Format() string {
	var lines []string
	num := func(label string, v *json.Number) {
		if v != nil {
			lines = append(lines, label+": "+v.String())
		}
	}
	str := func(label string, v *string) {
		if v != nil {
			lines = append(lines, label+": "+*v)
		}
	}

	num("Temperature (°C)", w.TempC)
	num("Humidity (%)", w.Humidity)
	num("Precipitation (mm)", w.PrecipMM)
	num("Wind Speed (kph)", w.WindKPH)
	str("Wind Direction", w.WindDir)
	num("UV Index", w.UV)
	num("Dew Point (°C)", w.DewpointC)
	num("Air Pressure (mb)", w.PressureMB)
	num("Cloud Cover (%)", w.Cloud)
	if w.Condition != nil {
		str("Weather Condition", w.Condition.Text)
	}
	return strings.Join(lines, "\n")
}
