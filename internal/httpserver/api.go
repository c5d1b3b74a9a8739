package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/coremodel"
	"github.com/taoyao-code/h02-server/internal/gateway"
	"github.com/taoyao-code/h02-server/internal/protocol/h02"
	"github.com/taoyao-code/h02-server/internal/session"
)

// Gateway 管理接口依赖的网关能力
type Gateway interface {
	Devices() []session.DeviceInfo
	SendCommand(ctx context.Context, cmd *coremodel.Command) error
}

// CommandRequest 下发指令请求体
type CommandRequest struct {
	Type   coremodel.CommandType `json:"type" binding:"required"`
	Params coremodel.Attributes  `json:"params"`
}

type deviceHandler struct {
	gw     Gateway
	logger *zap.Logger
}

// RegisterDeviceRoutes 注册设备查询与指令下发路由
func RegisterDeviceRoutes(r gin.IRoutes, gw Gateway, logger *zap.Logger) {
	h := &deviceHandler{gw: gw, logger: logger}
	r.GET("/devices", h.list)
	r.GET("/devices/:id", h.get)
	r.POST("/devices/:id/commands", h.sendCommand)
	r.GET("/commands", h.commands)
	logger.Info("device routes registered")
}

func (h *deviceHandler) list(c *gin.Context) {
	devices := h.gw.Devices()
	c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}

func (h *deviceHandler) get(c *gin.Context) {
	id := c.Param("id")
	for _, d := range h.gw.Devices() {
		if d.DeviceID == id {
			c.JSON(http.StatusOK, d)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "设备不在线"})
}

func (h *deviceHandler) sendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	cmd := coremodel.NewCommand(req.Type, c.Param("id"))
	for k, v := range req.Params {
		cmd.WithParam(k, v)
	}

	err := h.gw.SendCommand(c.Request.Context(), cmd)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "sent", "device_id": cmd.DeviceID, "type": cmd.Type})
	case errors.Is(err, gateway.ErrDeviceNotConnected):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_connected", "message": err.Error()})
	case errors.Is(err, gateway.ErrEncodingFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "encoding_failed", "message": err.Error()})
	default:
		h.logger.Warn("send command failed",
			zap.String("device_id", cmd.DeviceID),
			zap.String("type", string(cmd.Type)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "write_failed", "message": err.Error()})
	}
}

func (h *deviceHandler) commands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": h02.SupportedCommands()})
}
