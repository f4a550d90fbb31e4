package dto

import "github.com/turtacn/clusterkeys/internal/domain/models"

// KeyResponse 密钥元数据响应。密钥材料永远不会返回。
type KeyResponse struct {
	KeyID     int64              `json:"key_id"`
	Purpose   string             `json:"purpose"`
	ExpiresAt models.LogicalTime `json:"expires_at"`
	// ExpiresAtString is the canonical "Timestamp(s, i)" rendering.
	ExpiresAtString string `json:"expires_at_string"`
}

// NewKeyResponse strips material from doc.
func NewKeyResponse(doc *models.KeyDocument) *KeyResponse {
	return &KeyResponse{
		KeyID:           doc.KeyID,
		Purpose:         doc.Purpose,
		ExpiresAt:       doc.ExpiresAt,
		ExpiresAtString: doc.ExpiresAt.String(),
	}
}

// GeneratorRequest 启用或禁用密钥生成器
type GeneratorRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GeneratorResponse 生成器状态响应
type GeneratorResponse struct {
	Enabled bool `json:"enabled"`
}

// SwitchRequest pins a runtime switch on or off.
type SwitchRequest struct {
	On *bool `json:"on" binding:"required"`
}

// RefreshResponse 手动刷新结果
type RefreshResponse struct {
	Refreshed    bool               `json:"refreshed"`
	LatestExpiry models.LogicalTime `json:"latest_expiry"`
	KeyCount     int                `json:"key_count"`
}
