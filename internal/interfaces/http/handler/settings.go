package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/interfaces/http/dto"
)

// credentialKeys lists the secret keys the settings screen manages
var credentialKeys = []string{
	pipeline.SecretRoarUsername,
	pipeline.SecretRoarSecret,
}

// SettingsHandler manages the stored target credentials. Values are write
// only; reads expose presence, never content.
type SettingsHandler struct {
	BaseHandler
	secrets pipeline.SecretStore
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(secrets pipeline.SecretStore) *SettingsHandler {
	return &SettingsHandler{secrets: secrets}
}

// CredentialStatus reports whether one credential is set
type CredentialStatus struct {
	Key      string `json:"key"`
	HasValue bool   `json:"hasValue"`
}

// List handles GET /settings/credentials
func (h *SettingsHandler) List(c *gin.Context) {
	statuses := make([]CredentialStatus, 0, len(credentialKeys))
	for _, key := range credentialKeys {
		has, err := h.secrets.Has(c.Request.Context(), key)
		if err != nil {
			h.InternalError(c, err.Error())
			return
		}
		statuses = append(statuses, CredentialStatus{Key: key, HasValue: has})
	}
	h.Success(c, statuses)
}

// UpdateCredentialsRequest carries new credential values. Empty fields leave
// the stored value untouched.
type UpdateCredentialsRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// Update handles PUT /settings/credentials
func (h *SettingsHandler) Update(c *gin.Context) {
	var req UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body")
		return
	}
	if req.Username == "" && req.Secret == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "nothing to update")
		return
	}

	if req.Username != "" {
		if err := h.secrets.Set(c.Request.Context(), pipeline.SecretRoarUsername, req.Username); err != nil {
			h.InternalError(c, err.Error())
			return
		}
	}
	if req.Secret != "" {
		if err := h.secrets.Set(c.Request.Context(), pipeline.SecretRoarSecret, req.Secret); err != nil {
			h.InternalError(c, err.Error())
			return
		}
	}

	h.Success(c, gin.H{"updated": true})
}

// RegisterRoutes registers settings routes
func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	settings := rg.Group("/settings")
	{
		settings.GET("/credentials", h.List)
		settings.PUT("/credentials", h.Update)
	}
}
