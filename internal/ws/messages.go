package ws

import (
	"encoding/json"

	"load_forecaster/internal/forecast"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals a typed message ready for the wire.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Client -> Server messages

// GetForecastPayload optionally pins the as-of date ("2006-01-02");
// empty means the server's current date.
type GetForecastPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// Server -> Client messages

type TimeRangeInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DataLoadedPayload is pushed once after a client connects.
type DataLoadedPayload struct {
	TestRows  int           `json:"test_rows"`
	TrainRows int           `json:"train_rows"`
	TimeRange TimeRangeInfo `json:"time_range"`
	MAE       *float64      `json:"mae"`
	RMSE      *float64      `json:"rmse"`
	R2        *float64      `json:"r2"`
}

// ForecastPayload answers a forecast:get request.
type ForecastPayload struct {
	Forecast24h      []forecast.HourlyPoint  `json:"forecast24h"`
	ForecastTomorrow []forecast.NextDayPoint `json:"forecastTomorrow"`
	WeeklyForecast   []forecast.DayForecast  `json:"weeklyForecast"`
}

// ErrorPayload reports a failed query without dropping the connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Message type constants
const (
	// Client -> Server
	TypeForecastGet = "forecast:get"
	TypePeakGet     = "peak:get"

	// Server -> Client
	TypeDataLoaded     = "data:loaded"
	TypeForecastUpdate = "forecast:update"
	TypePeakUpdate     = "peak:update"
	TypeError          = "error"
)
