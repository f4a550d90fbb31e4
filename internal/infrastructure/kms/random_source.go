// Package kms provides the sources of secret material for newly generated cluster keys.
package kms

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// RandomSource reads key material from the operating system CSPRNG.
type RandomSource struct {
	length int
	reader io.Reader
}

var _ service.KeyMaterialSource = (*RandomSource)(nil)

// NewRandomSource creates a source producing length bytes per key.
// A non-positive length selects DefaultKeyMaterialLength.
func NewRandomSource(length int) *RandomSource {
	if length <= 0 {
		length = constants.DefaultKeyMaterialLength
	}
	return &RandomSource{length: length, reader: rand.Reader}
}

// GenerateSecret returns fresh random bytes.
func (s *RandomSource) GenerateSecret(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDeadlineExceeded, "generate secret")
	}
	secret := make([]byte, s.length)
	if _, err := io.ReadFull(s.reader, secret); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read random bytes")
	}
	return secret, nil
}

// NewSource builds the key material source selected by kind.
func NewSource(kind constants.KeySourceKind, vaultCfg config.VaultConfig, log logger.Logger) (service.KeyMaterialSource, error) {
	switch kind {
	case constants.KeySourceRandom, "":
		return NewRandomSource(vaultCfg.RandomBytes), nil
	case constants.KeySourceVault:
		client, err := NewVaultClient(vaultCfg)
		if err != nil {
			return nil, err
		}
		return NewVaultSource(client, vaultCfg.RandomBytes, log), nil
	default:
		return nil, errors.InvalidArgument("unsupported key source").WithMetadata("key_source", string(kind))
	}
}
