package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"traffic-analyzer/internal/arduino"
	"traffic-analyzer/internal/config"
	"traffic-analyzer/internal/render"
	"traffic-analyzer/internal/service"
)

// SerialManager connects the dashboard's port picker to the hardware.
type SerialManager interface {
	Connect(portName string, baud int) error
}

type Handler struct {
	trafficService *service.TrafficService
	serial         SerialManager
	listPorts      func() ([]string, error)
	config         *config.Config
	log            zerolog.Logger
}

func NewHandler(
	trafficService *service.TrafficService,
	serial SerialManager,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		trafficService: trafficService,
		serial:         serial,
		listPorts:      arduino.ListPorts,
		config:         cfg,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/status", h.getStatus)
		public.GET("/analysis", h.getAnalysis)
		public.GET("/signal", h.getSignal)
		public.GET("/overlay", h.getOverlay)
		public.GET("/map", h.getMap)
		public.GET("/lanes", h.getLaneCounts)
		public.GET("/lanes/events", h.listLaneEvents)
		public.GET("/serial/ports", h.listSerialPorts)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/serial/connect", h.connectSerial)
		protected.POST("/announce", h.announce)
	}
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.trafficService.Status(time.Now())))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, _, ok := h.trafficService.CurrentState()
	c.JSON(http.StatusOK, gin.H{
		"data":       analysis,
		"has_result": ok,
	})
}

func (h *Handler) getSignal(c *gin.Context) {
	_, decision, ok := h.trafficService.CurrentState()
	c.JSON(http.StatusOK, gin.H{
		"data":         decision,
		"has_decision": ok,
	})
}

func (h *Handler) getOverlay(c *gin.Context) {
	width, errW := parseInt(c.DefaultQuery("w", "1280"))
	height, errH := parseInt(c.DefaultQuery("h", "720"))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("w and h must be positive integers"))
		return
	}

	analysis, _, _ := h.trafficService.CurrentState()
	c.JSON(http.StatusOK, successResponse(render.Overlay(analysis, width, height)))
}

func (h *Handler) getMap(c *gin.Context) {
	analysis, decision, _ := h.trafficService.CurrentState()
	status := h.trafficService.Status(time.Now())
	c.JSON(http.StatusOK, successResponse(render.Intersection(analysis, decision, status.SensorTriggered)))
}

func (h *Handler) getLaneCounts(c *gin.Context) {
	window := 24 * time.Hour
	if hrs := c.Query("hours"); hrs != "" {
		parsed, err := parseInt(hrs)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("hours must be a positive integer"))
			return
		}
		window = time.Duration(parsed) * time.Hour
	}

	counts, err := h.trafficService.LaneCounts(c.Request.Context(), window)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(counts))
}

func (h *Handler) listLaneEvents(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.trafficService.LaneEvents(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) listSerialPorts(c *gin.Context) {
	ports, err := h.listPorts()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list serial ports")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(ports))
}

func (h *Handler) connectSerial(c *gin.Context) {
	var payload struct {
		Port string `json:"port"`
		Baud int    `json:"baud"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if strings.TrimSpace(payload.Port) == "" {
		c.JSON(http.StatusBadRequest, errorResponse("port is required"))
		return
	}
	baud := payload.Baud
	if baud <= 0 {
		baud = h.config.Serial.Baud
	}

	if err := h.serial.Connect(payload.Port, baud); err != nil {
		h.log.Error().Err(err).Str("port", payload.Port).Msg("serial connect failed")
		c.JSON(http.StatusBadGateway, errorResponse("could not open serial port"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "port": payload.Port})
}

func (h *Handler) announce(c *gin.Context) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.trafficService.Announce(payload.Message); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
