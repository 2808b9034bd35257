package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/chanbridge/internal/api/middleware"
	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/chanbridge/internal/providers/terminal"
)

// Version is reported by Root.
const Version = "0.3.0"

// Channels is the bridge surface the admin API reads and drives.
type Channels interface {
	Snapshot() []bridge.ChannelStatus
	Status(index int) (bridge.ChannelStatus, error)
	Unthrottle(index int) error
}

// Devices is the terminal surface. It may be nil when no devices are exposed.
type Devices interface {
	Devices() []terminal.DeviceInfo
	Reattach(index int) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	channels Channels
	devices  Devices
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(channels Channels, devices Devices, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		channels: channels,
		devices:  devices,
		metrics:  metrics,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "chanbridge",
		"version": Version,
	})
}

// Health reports open channels and device attachment.
func (h *Handlers) Health(c *gin.Context) {
	snapshot := h.channels.Snapshot()
	open := 0
	for _, s := range snapshot {
		if s.Open {
			open++
		}
	}

	resp := gin.H{
		"status":        "healthy",
		"channels":      len(snapshot),
		"open_channels": open,
	}
	if h.devices != nil {
		attached := 0
		devices := h.devices.Devices()
		for _, d := range devices {
			if d.Attached {
				attached++
			}
		}
		resp["devices"] = len(devices)
		resp["attached_devices"] = attached
	}
	c.JSON(http.StatusOK, resp)
}

// ListChannels returns every channel's status.
func (h *Handlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.channels.Snapshot()})
}

// GetChannel returns one channel's status.
func (h *Handlers) GetChannel(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	status, err := h.channels.Status(index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Unthrottle re-arms delivery on a channel whose sink has drained.
func (h *Handlers) Unthrottle(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	if err := h.channels.Unthrottle(index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"index": index, "scheduled": true})
}

// ListDevices returns the terminal devices.
func (h *Handlers) ListDevices(c *gin.Context) {
	if h.devices == nil {
		c.JSON(http.StatusOK, gin.H{"devices": []terminal.DeviceInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": h.devices.Devices()})
}

// AttachDevice reattaches a device after a hangup.
func (h *Handlers) AttachDevice(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if h.devices == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "devices disabled"})
		return
	}

	if err := h.devices.Reattach(index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "attached": true})
}

// MetricsJSON returns the metrics snapshot as JSON.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "index must be a non-negative integer",
			"request_id": middleware.GetRequestID(c),
		})
		return 0, false
	}
	return index, true
}

// respondError maps bridge errors to status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, terminal.ErrNoDevice):
		status = http.StatusNotFound
	case errors.Is(err, bridge.ErrShutdown), errors.Is(err, terminal.ErrDeviceClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrResourceExhausted):
		status = http.StatusInsufficientStorage
	}
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"request_id": middleware.GetRequestID(c),
	})
}
