package kms

import (
	"context"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// VaultSource draws key material from Vault's sys/tools/random endpoint so
// the entropy source is audited alongside the rest of the secrets estate.
type VaultSource struct {
	client *vault.Client
	length int
	logger logger.Logger
}

var _ service.KeyMaterialSource = (*VaultSource)(nil)

// NewVaultClient builds a Vault API client from VaultConfig.
func NewVaultClient(cfg config.VaultConfig) (*vault.Client, error) {
	vcfg := vault.DefaultConfig()
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		vcfg.Timeout = cfg.Timeout
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "create vault client")
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return client, nil
}

// NewVaultSource creates a Vault backed source producing length bytes per key.
func NewVaultSource(client *vault.Client, length int, log logger.Logger) *VaultSource {
	if length <= 0 {
		length = constants.DefaultKeyMaterialLength
	}
	return &VaultSource{client: client, length: length, logger: log.WithComponent("VaultSource")}
}

// GenerateSecret asks Vault for random bytes in base64 and decodes them.
func (s *VaultSource) GenerateSecret(ctx context.Context) ([]byte, error) {
	path := fmt.Sprintf("sys/tools/random/%d", s.length)
	secret, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"format": "base64",
	})
	if err != nil {
		s.logger.Error(ctx, "Vault random request failed", err, logger.String("path", path))
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "vault random bytes")
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.Internal("vault returned no random bytes")
	}

	encoded, ok := secret.Data["random_bytes"].(string)
	if !ok {
		return nil, errors.Internal("vault random_bytes missing or not a string")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "decode vault random bytes")
	}
	if len(raw) != s.length {
		return nil, errors.Internal(fmt.Sprintf("vault returned %d bytes, want %d", len(raw), s.length))
	}
	return raw, nil
}
