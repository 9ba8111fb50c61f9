package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
	keysRepository "github.com/allisson/caresync/internal/keys/repository"
	keysService "github.com/allisson/caresync/internal/keys/service"
)

// StateRepository returns the file-backed key material state repository.
func (c *Container) StateRepository() (*keysRepository.FileStateRepository, error) {
	c.stateRepoInit.Do(func() {
		repo, err := keysRepository.NewFileStateRepository(c.config.StateDir)
		if err != nil {
			c.initErrors["stateRepo"] = fmt.Errorf("failed to create state repository: %w", err)
			return
		}
		c.stateRepo = repo
	})
	if storedErr, exists := c.initErrors["stateRepo"]; exists {
		return nil, storedErr
	}
	return c.stateRepo, nil
}

// DeviceID returns the stable fingerprint of this installation. The configured
// value wins; otherwise a persisted fingerprint is loaded, generated on first run.
func (c *Container) DeviceID() (string, error) {
	c.deviceIDInit.Do(func() {
		if c.config.DeviceID != "" {
			c.deviceID = c.config.DeviceID
			return
		}

		repo, err := c.StateRepository()
		if err != nil {
			c.initErrors["deviceID"] = fmt.Errorf("failed to get state repository for device id: %w", err)
			return
		}

		ctx := context.Background()
		deviceID, err := repo.LoadDeviceID(ctx)
		if err == nil {
			c.deviceID = deviceID
			return
		}
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			c.initErrors["deviceID"] = fmt.Errorf("failed to load device id: %w", err)
			return
		}

		deviceID = uuid.Must(uuid.NewV7()).String()
		if err := repo.SaveDeviceID(ctx, deviceID); err != nil {
			c.initErrors["deviceID"] = fmt.Errorf("failed to persist device id: %w", err)
			return
		}
		c.deviceID = deviceID
	})
	if storedErr, exists := c.initErrors["deviceID"]; exists {
		return "", storedErr
	}
	return c.deviceID, nil
}

// AEADManager returns the cipher factory shared by the vault and the document store.
func (c *Container) AEADManager() (keysService.AEADManager, error) {
	c.aeadManagerInit.Do(func() {
		nonces, err := keysService.NewNonceSequence()
		if err != nil {
			c.initErrors["aeadManager"] = fmt.Errorf("failed to create nonce sequence: %w", err)
			return
		}
		c.aeadManager = keysService.NewAEADManager(nonces)
	})
	if storedErr, exists := c.initErrors["aeadManager"]; exists {
		return nil, storedErr
	}
	return c.aeadManager, nil
}

// DerivationService returns the access code derivation service.
func (c *Container) DerivationService() *keysService.DerivationService {
	c.derivationInit.Do(func() {
		c.derivation = keysService.NewDerivationService(
			c.config.KDFIterations,
			c.config.AccessCodeMinLength,
		)
	})
	return c.derivation
}

// DeviceVault returns the device secret vault service.
func (c *Container) DeviceVault() (*keysService.DeviceVaultService, error) {
	c.vaultInit.Do(func() {
		repo, err := c.StateRepository()
		if err != nil {
			c.initErrors["vault"] = fmt.Errorf("failed to get state repository for vault: %w", err)
			return
		}

		aeadManager, err := c.AEADManager()
		if err != nil {
			c.initErrors["vault"] = fmt.Errorf("failed to get aead manager for vault: %w", err)
			return
		}

		algorithm, err := c.aeadAlgorithm()
		if err != nil {
			c.initErrors["vault"] = err
			return
		}

		c.vault = keysService.NewDeviceVaultService(repo, aeadManager, algorithm)
	})
	if storedErr, exists := c.initErrors["vault"]; exists {
		return nil, storedErr
	}
	return c.vault, nil
}

// EscrowService returns the KMS escrow service, or nil when no KMS key URI is
// configured.
func (c *Container) EscrowService() (*keysService.EscrowService, error) {
	c.escrowInit.Do(func() {
		if c.config.KMSKeyURI == "" {
			return
		}

		repo, err := c.StateRepository()
		if err != nil {
			c.initErrors["escrow"] = fmt.Errorf("failed to get state repository for escrow: %w", err)
			return
		}

		keeper, err := keysService.OpenEscrowKeeper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			c.initErrors["escrow"] = fmt.Errorf("failed to open escrow keeper: %w", err)
			return
		}

		c.escrow = keysService.NewEscrowService(keeper, repo)
	})
	if storedErr, exists := c.initErrors["escrow"]; exists {
		return nil, storedErr
	}
	return c.escrow, nil
}

// SessionManager returns the session key manager.
func (c *Container) SessionManager() (*keysService.SessionKeyManager, error) {
	c.sessionManagerInit.Do(func() {
		vault, err := c.DeviceVault()
		if err != nil {
			c.initErrors["sessionManager"] = fmt.Errorf("failed to get vault for session manager: %w", err)
			return
		}

		escrow, err := c.EscrowService()
		if err != nil {
			c.initErrors["sessionManager"] = fmt.Errorf("failed to get escrow for session manager: %w", err)
			return
		}

		repo, err := c.StateRepository()
		if err != nil {
			c.initErrors["sessionManager"] = fmt.Errorf("failed to get state repository for session manager: %w", err)
			return
		}

		deviceID, err := c.DeviceID()
		if err != nil {
			c.initErrors["sessionManager"] = fmt.Errorf("failed to get device id for session manager: %w", err)
			return
		}

		c.sessionManager = keysService.NewSessionKeyManager(
			c.DerivationService(),
			vault,
			escrow,
			repo,
			c.AuditSink(),
			c.Logger(),
			deviceID,
			c.config.SessionMaxKeyAge,
			c.config.RestoreTimeout,
			c.config.RestoreRetryInterval,
		)
	})
	if storedErr, exists := c.initErrors["sessionManager"]; exists {
		return nil, storedErr
	}
	return c.sessionManager, nil
}

// aeadAlgorithm maps the configured cipher name to the domain algorithm.
func (c *Container) aeadAlgorithm() (keysDomain.Algorithm, error) {
	switch keysDomain.Algorithm(c.config.AEADAlgorithm) {
	case keysDomain.AESGCM:
		return keysDomain.AESGCM, nil
	case keysDomain.ChaCha20:
		return keysDomain.ChaCha20, nil
	default:
		return "", fmt.Errorf("unsupported aead algorithm: %s", c.config.AEADAlgorithm)
	}
}
