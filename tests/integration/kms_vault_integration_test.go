//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/internal/infrastructure/kms"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

type KmsVaultIntegrationTestSuite struct {
	suite.Suite
	source service.KeyMaterialSource
}

func (s *KmsVaultIntegrationTestSuite) SetupSuite() {
	var err error
	s.source, err = kms.NewSource(constants.KeySourceVault, config.VaultConfig{
		Address:     vaultAddr,
		Token:       vaultToken,
		RandomBytes: 32,
		Timeout:     5 * time.Second,
	}, logger.NewNoopLogger())
	s.Require().NoError(err)
}

func (s *KmsVaultIntegrationTestSuite) TestGenerateSecret() {
	ctx := context.Background()

	first, err := s.source.GenerateSecret(ctx)
	s.Require().NoError(err)
	s.Len(first, 32)

	second, err := s.source.GenerateSecret(ctx)
	s.Require().NoError(err)
	s.NotEqual(first, second)
}

func (s *KmsVaultIntegrationTestSuite) TestBadTokenIsStoreUnavailable() {
	src, err := kms.NewSource(constants.KeySourceVault, config.VaultConfig{
		Address: vaultAddr,
		Token:   "not-a-token",
	}, logger.NewNoopLogger())
	s.Require().NoError(err)

	_, err = src.GenerateSecret(context.Background())
	s.Error(err)
}

func TestKmsVaultIntegration(t *testing.T) {
	if os.Getenv("SKIP_DOCKER_TESTS") != "" {
		t.Skip("Skipping Docker-dependent tests")
	}
	suite.Run(t, new(KmsVaultIntegrationTestSuite))
}
