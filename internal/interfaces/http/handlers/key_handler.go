package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clusterkeys/internal/application/dto"
	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// KeyManager is the part of keys.Manager served over HTTP.
type KeyManager interface {
	GetKeyForSigning(ctx context.Context, at models.LogicalTime) (*models.KeyDocument, error)
	GetKeyForValidation(ctx context.Context, keyID int64, at models.LogicalTime) (*models.KeyDocument, error)
	RefreshNow(ctx context.Context) error
	EnableKeyGenerator(enable bool)
	Status() keys.Status
	Ready() bool
}

// SwitchSetter pins runtime switches.
type SwitchSetter interface {
	Set(name keys.SwitchName, on bool) error
	Snapshot() map[string]bool
}

// KeyHandler serves key lookups and admin operations.
type KeyHandler struct {
	manager  KeyManager
	switches SwitchSetter
	clock    service.ClusterClock
	log      logger.Logger
}

// NewKeyHandler creates a KeyHandler. clock supplies the lookup time when a
// request omits "at"; switches may be nil.
func NewKeyHandler(manager KeyManager, switches SwitchSetter, clock service.ClusterClock, log logger.Logger) *KeyHandler {
	return &KeyHandler{
		manager:  manager,
		switches: switches,
		clock:    clock,
		log:      log.WithComponent("KeyHandler"),
	}
}

// parseAt reads ?at=<secs>&inc=<n>, defaulting to the current cluster time.
func (h *KeyHandler) parseAt(c *gin.Context) (models.LogicalTime, error) {
	atStr, ok := c.GetQuery("at")
	if !ok {
		return h.clock.Now(), nil
	}
	secs, err := strconv.ParseUint(atStr, 10, 32)
	if err != nil {
		return models.LogicalTime{}, errors.InvalidArgument("at must be an unsigned 32-bit number of seconds")
	}
	var inc uint64
	if incStr, ok := c.GetQuery("inc"); ok {
		inc, err = strconv.ParseUint(incStr, 10, 32)
		if err != nil {
			return models.LogicalTime{}, errors.InvalidArgument("inc must be an unsigned 32-bit number")
		}
	}
	return models.NewLogicalTime(uint32(secs), uint32(inc)), nil
}

// GetSigningKey handles GET /v1/keys/signing.
func (h *KeyHandler) GetSigningKey(c *gin.Context) {
	at, err := h.parseAt(c)
	if err != nil {
		SendError(c, err)
		return
	}
	doc, err := h.manager.GetKeyForSigning(c.Request.Context(), at)
	if err != nil {
		SendError(c, err)
		return
	}
	SendSuccess(c, dto.NewKeyResponse(doc))
}

// GetValidationKey handles GET /v1/keys/:id.
func (h *KeyHandler) GetValidationKey(c *gin.Context) {
	keyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		SendError(c, errors.InvalidArgument("key id must be an integer"))
		return
	}
	at, err := h.parseAt(c)
	if err != nil {
		SendError(c, err)
		return
	}
	doc, err := h.manager.GetKeyForValidation(c.Request.Context(), keyID, at)
	if err != nil {
		if errors.IsDeadlineExceeded(err) {
			h.log.Warn(c.Request.Context(), "Validation lookup timed out before first refresh",
				logger.Int64("key_id", keyID))
		}
		SendError(c, err)
		return
	}
	SendSuccess(c, dto.NewKeyResponse(doc))
}

// Refresh handles POST /v1/keys/refresh.
func (h *KeyHandler) Refresh(c *gin.Context) {
	if err := h.manager.RefreshNow(c.Request.Context()); err != nil {
		SendError(c, err)
		return
	}
	st := h.manager.Status()
	SendSuccess(c, &dto.RefreshResponse{
		Refreshed:    st.Refreshed,
		LatestExpiry: st.LatestExpiry,
		KeyCount:     len(st.Keys),
	})
}

// SetGenerator handles PUT /v1/keys/generator.
func (h *KeyHandler) SetGenerator(c *gin.Context) {
	var req dto.GeneratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.InvalidArgument("body must be {\"enabled\": bool}"))
		return
	}
	h.manager.EnableKeyGenerator(*req.Enabled)
	h.log.Info(c.Request.Context(), "Key generator toggled", logger.Bool("enabled", *req.Enabled))
	SendSuccess(c, &dto.GeneratorResponse{Enabled: *req.Enabled})
}

// SetSwitch handles PUT /v1/keys/switches/:name.
func (h *KeyHandler) SetSwitch(c *gin.Context) {
	if h.switches == nil {
		SendError(c, errors.IllegalState("runtime switches are not configurable"))
		return
	}
	var req dto.SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, errors.InvalidArgument("body must be {\"on\": bool}"))
		return
	}
	name := c.Param("name")
	if err := h.switches.Set(keys.SwitchName(name), *req.On); err != nil {
		SendError(c, err)
		return
	}
	h.log.Warn(c.Request.Context(), "Runtime switch changed", logger.String("switch", name), logger.Bool("on", *req.On))
	SendSuccess(c, h.switches.Snapshot())
}

// GetStatus handles GET /v1/keys/status.
func (h *KeyHandler) GetStatus(c *gin.Context) {
	SendSuccess(c, h.manager.Status())
}
