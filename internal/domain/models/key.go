package models

// KeyDocument is one persisted cluster key: secret material identified by a
// numeric id and valid until ExpiresAt in cluster time.
// KeyDocument 是一个持久化的集群密钥：由数字 ID 标识的秘密材料，在集群时间 ExpiresAt 之前有效。
type KeyDocument struct {
	// KeyID uniquely identifies the key within its purpose. Ids are assigned in increasing order.
	// KeyID 在其用途内唯一标识密钥。ID 按递增顺序分配。
	KeyID int64 `json:"key_id"`
	// Purpose groups the keys a manager maintains, e.g. "HMAC".
	// Purpose 对管理器维护的密钥进行分组，例如 "HMAC"。
	Purpose string `json:"purpose"`
	// Key is the secret material. It is never logged or served over the status API.
	// Key 是秘密材料。它永远不会被记录或通过状态 API 提供。
	Key []byte `json:"-"`
	// ExpiresAt is the cluster time after which the key may no longer sign.
	// ExpiresAt 是密钥不再可用于签名的集群时间。
	ExpiresAt LogicalTime `json:"expires_at"`
}

// NewKeyDocument creates a key document, copying the key material.
func NewKeyDocument(keyID int64, purpose string, key []byte, expiresAt LogicalTime) *KeyDocument {
	return &KeyDocument{
		KeyID:     keyID,
		Purpose:   purpose,
		Key:       append([]byte(nil), key...),
		ExpiresAt: expiresAt,
	}
}

// Clone returns a deep copy so callers can never mutate cached material.
func (k *KeyDocument) Clone() *KeyDocument {
	if k == nil {
		return nil
	}
	return NewKeyDocument(k.KeyID, k.Purpose, k.Key, k.ExpiresAt)
}

// IsValidAt reports whether the key can still sign at t.
func (k *KeyDocument) IsValidAt(t LogicalTime) bool {
	return k.ExpiresAt.After(t)
}

// KeyInfo is the material-free view of a key used by status endpoints and the CLI.
// KeyInfo 是状态端点和 CLI 使用的不含密钥材料的视图。
type KeyInfo struct {
	KeyID     int64       `json:"key_id"`
	Purpose   string      `json:"purpose"`
	ExpiresAt LogicalTime `json:"expires_at"`
}

// Info strips the key material.
func (k *KeyDocument) Info() KeyInfo {
	return KeyInfo{KeyID: k.KeyID, Purpose: k.Purpose, ExpiresAt: k.ExpiresAt}
}
