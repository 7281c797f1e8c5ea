package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"load_forecaster/internal/forecast"
)

// Handler exposes the aggregation engine as an HTTP JSON API.
type Handler struct {
	engine *forecast.Engine
	now    func() time.Time
}

// New creates a handler. now supplies the current date for the
// calendar-relative queries; pass time.Now in production.
func New(engine *forecast.Engine, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{engine: engine, now: now}
}

// Router mounts the API routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/forecast", h.handleForecast).Methods(http.MethodGet)
	r.HandleFunc("/peak", h.handlePeak).Methods(http.MethodGet)
	return r
}

// ModelStats mirrors the modelStats block of the /forecast payload.
type ModelStats struct {
	MAE       *float64 `json:"mae"`
	RMSE      *float64 `json:"rmse"`
	R2        *float64 `json:"r2"`
	TrainSize int      `json:"trainSize"`
	TestSize  int      `json:"testSize"`
	Algorithm string   `json:"algorithm"`
	Features  int      `json:"features"`
}

// ForecastResponse is the /forecast payload.
type ForecastResponse struct {
	Forecast24h      []forecast.HourlyPoint  `json:"forecast24h"`
	ForecastTomorrow []forecast.NextDayPoint `json:"forecastTomorrow"`
	ModelStats       ModelStats              `json:"modelStats"`
	WeeklyForecast   []forecast.DayForecast  `json:"weeklyForecast"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Model    string `json:"model"`
	TestRows int    `json:"testRows"`
}

const algorithmName = "Feedforward Neural Network"

// numFeatures reported in modelStats: the width of the predictor input.
const numFeatures = 14

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Model:    algorithmName,
		TestRows: h.engine.Metrics().TestSize,
	})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()

	hourly, err := h.engine.HourlyProfile()
	if err != nil {
		writeError(w, err)
		return
	}
	tomorrow, err := h.engine.NextDayProfile(asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	weekly, err := h.engine.WeeklyForecast(asOf)
	if err != nil {
		writeError(w, err)
		return
	}

	m := h.engine.Metrics()
	writeJSON(w, http.StatusOK, ForecastResponse{
		Forecast24h:      hourly,
		ForecastTomorrow: tomorrow,
		ModelStats: ModelStats{
			MAE:       forecast.Round4(m.MAE),
			RMSE:      forecast.Round4(m.RMSE),
			R2:        forecast.Round4(m.R2),
			TrainSize: m.TrainSize,
			TestSize:  m.TestSize,
			Algorithm: algorithmName,
			Features:  numFeatures,
		},
		WeeklyForecast: weekly,
	})
}

func (h *Handler) handlePeak(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.engine.PeakAnalysis()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// writeError reports a query-boundary failure as a structured payload.
// The shared cache is untouched; other queries keep serving.
func writeError(w http.ResponseWriter, err error) {
	log.Printf("query failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}
