package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"load_forecaster/internal/forecast"
	"load_forecaster/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the dashboard WebSocket feed: on connect a client gets a
// data:loaded summary, then may request forecast and peak payloads.
type Handler struct {
	hub    *Hub
	engine *forecast.Engine
	tr     model.TimeRange
	now    func() time.Time
}

func NewHandler(hub *Hub, engine *forecast.Engine, tr model.TimeRange, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{hub: hub, engine: engine, tr: tr, now: now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendDataLoaded(client)

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("Invalid message: %v", err)
		return
	}

	switch env.Type {
	case TypeForecastGet:
		var p GetForecastPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				h.sendError(c, "invalid forecast:get payload")
				return
			}
		}
		asOf := h.now()
		if p.AsOf != "" {
			t, err := time.Parse("2006-01-02", p.AsOf)
			if err != nil {
				h.sendError(c, "invalid as_of date, want YYYY-MM-DD")
				return
			}
			asOf = t
		}
		h.sendForecast(c, asOf)

	case TypePeakGet:
		h.sendPeak(c)

	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

func (h *Handler) sendDataLoaded(c *Client) {
	m := h.engine.Metrics()
	msg, err := NewEnvelope(TypeDataLoaded, DataLoadedPayload{
		TestRows:  m.TestSize,
		TrainRows: m.TrainSize,
		TimeRange: TimeRangeInfo{
			Start: h.tr.Start.Format(time.RFC3339),
			End:   h.tr.End.Format(time.RFC3339),
		},
		MAE:  forecast.Round4(m.MAE),
		RMSE: forecast.Round4(m.RMSE),
		R2:   forecast.Round4(m.R2),
	})
	if err != nil {
		log.Printf("Error marshaling data:loaded: %v", err)
		return
	}
	h.deliver(c, msg)
}

func (h *Handler) sendForecast(c *Client, asOf time.Time) {
	hourly, err := h.engine.HourlyProfile()
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	tomorrow, err := h.engine.NextDayProfile(asOf)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	weekly, err := h.engine.WeeklyForecast(asOf)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	msg, err := NewEnvelope(TypeForecastUpdate, ForecastPayload{
		Forecast24h:      hourly,
		ForecastTomorrow: tomorrow,
		WeeklyForecast:   weekly,
	})
	if err != nil {
		log.Printf("Error marshaling forecast:update: %v", err)
		return
	}
	h.deliver(c, msg)
}

func (h *Handler) sendPeak(c *Client) {
	analysis, err := h.engine.PeakAnalysis()
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	msg, err := NewEnvelope(TypePeakUpdate, analysis)
	if err != nil {
		log.Printf("Error marshaling peak:update: %v", err)
		return
	}
	h.deliver(c, msg)
}

func (h *Handler) sendError(c *Client, message string) {
	log.Printf("ws query failed: %s", message)
	msg, err := NewEnvelope(TypeError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	h.deliver(c, msg)
}

func (h *Handler) deliver(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		log.Printf("client buffer full, dropping message")
	}
}
