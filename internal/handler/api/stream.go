package api

import (
	"context"
	"net/http"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/service/metrics"
	"StockCast/internal/services/forecast"
	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 10 * time.Second

// StreamMessage is one websocket frame of a forecast stream. A stream sends
// state frames as the engine advances, then exactly one result or error frame.
type StreamMessage struct {
	Type   string                   `json:"type"`
	From   string                   `json:"from,omitempty"`
	State  string                   `json:"state,omitempty"`
	Result *usecase.PredictResponse `json:"result,omitempty"`
	Error  *xhttp.AppError          `json:"error,omitempty"`
}

// StreamHandler runs a forecast per websocket connection.
type StreamHandler struct {
	logger   *xlogger.Logger
	predict  *usecase.PredictUseCase
	upgrader websocket.Upgrader
}

func NewStreamHandler(logger *xlogger.Logger, predict *usecase.PredictUseCase) *StreamHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StreamHandler{
		logger:  logger,
		predict: predict,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/forecast", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		// drain client frames so close and ping are processed
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(m StreamMessage) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(m); err != nil {
			h.logger.Debug("websocket write failed", xlogger.Error(err))
			cancel()
		}
	}

	res, err := h.predict.Stream(ctx, req.Ticker, req.Days, func(from, to forecast.State, _ error) {
		send(StreamMessage{Type: "state", From: from.String(), State: to.String()})
	})
	if err != nil {
		h.logger.Error("stream usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		send(StreamMessage{Type: "error", Error: usecase.AppErrorOf(err)})
	} else {
		send(StreamMessage{Type: "result", Result: res})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return nil
}
