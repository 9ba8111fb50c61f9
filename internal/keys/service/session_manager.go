package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/caresync/internal/audit"
	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// SessionKeyManager holds the session key and drives its lifecycle.
//
// States:
//   - Locked: no key in memory. Every data operation fails with ErrKeyUnavailable.
//   - Unlocking: a derivation or restore attempt is in flight.
//   - Unlocked: a valid key is held until it expires or the session locks.
//   - Degraded: the derivation path failed; restore attempts run against the
//     wrapped backup, throttled by the retry interval.
//
// The manager is safe for concurrent use. EnsureKey is the single choke point
// data operations go through: it re-checks expiry on every call and triggers a
// restore attempt when degraded, so callers never observe a stale key.
type SessionKeyManager struct {
	mu    sync.Mutex
	state keysDomain.SessionState
	key   *keysDomain.EncryptionKey

	derivation *DerivationService
	vault      *DeviceVaultService
	escrow     *EscrowService // nil when escrow is not configured
	repo       StateRepository
	sink       audit.Sink
	logger     *slog.Logger

	deviceID       string
	maxKeyAge      time.Duration
	restoreTimeout time.Duration
	retryInterval  time.Duration
	lastRestoreTry time.Time

	now func() time.Time
}

// NewSessionKeyManager creates a locked SessionKeyManager.
func NewSessionKeyManager(
	derivation *DerivationService,
	vault *DeviceVaultService,
	escrow *EscrowService,
	repo StateRepository,
	sink audit.Sink,
	logger *slog.Logger,
	deviceID string,
	maxKeyAge time.Duration,
	restoreTimeout time.Duration,
	retryInterval time.Duration,
) *SessionKeyManager {
	return &SessionKeyManager{
		state:          keysDomain.StateLocked,
		derivation:     derivation,
		vault:          vault,
		escrow:         escrow,
		repo:           repo,
		sink:           sink,
		logger:         logger,
		deviceID:       deviceID,
		maxKeyAge:      maxKeyAge,
		restoreTimeout: restoreTimeout,
		retryInterval:  retryInterval,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// State returns the current session state.
func (m *SessionKeyManager) State() keysDomain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Unlock derives the session key from the access code and installation salt.
//
// The first successful unlock of an installation seals a key check probe; every
// later unlock must decrypt that probe, which rejects wrong access codes
// without storing any digest of the code. A wrong code returns
// ErrDecryptionFailed and is audited as a failed unlock.
//
// When the salt cannot be read (vault outage), the session enters Degraded and
// immediately attempts a restore from the wrapped backup.
func (m *SessionKeyManager) Unlock(ctx context.Context, accessCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setState(keysDomain.StateUnlocking)

	salt, err := m.repo.LoadSalt(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			m.setState(keysDomain.StateLocked)
			return keysDomain.ErrMissingSalt
		}
		return m.enterDegraded(ctx, "salt unavailable: "+err.Error())
	}

	key, err := m.derivation.DeriveKey(accessCode, salt)
	if err != nil {
		m.setState(keysDomain.StateLocked)
		return err
	}

	if err := m.verifyOrSealKeyCheck(ctx, key); err != nil {
		key.Zero()
		m.setState(keysDomain.StateLocked)
		m.appendEvent(ctx, audit.EventUnlockFailed, "access code rejected by key check")
		return err
	}

	m.install(key)
	m.appendEvent(ctx, audit.EventKeyDerived, "")
	m.refreshBackups(ctx, key)

	return nil
}

// UnlockGenerated installs a fresh random key. Intended for installations that
// opt out of access-code derivation; the key only survives restarts through
// the wrapped backup.
func (m *SessionKeyManager) UnlockGenerated(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setState(keysDomain.StateUnlocking)

	key, err := m.derivation.GenerateKey()
	if err != nil {
		m.setState(keysDomain.StateLocked)
		return err
	}

	m.install(key)
	m.appendEvent(ctx, audit.EventKeyGenerated, "")
	m.refreshBackups(ctx, key)

	return nil
}

// Restore attempts to bring the session to Unlocked from the wrapped backup,
// falling back to KMS escrow when the backup fails and escrow is configured.
func (m *SessionKeyManager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoreLocked(ctx)
}

// Lock zeroes the key and returns the session to Locked.
func (m *SessionKeyManager) Lock(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drop()
	m.setState(keysDomain.StateLocked)
	m.appendEvent(ctx, audit.EventSessionLocked, "")
}

// EnsureKey returns the session key, enforcing expiry and degraded recovery.
//
// Callers must treat the returned key as borrowed: never retain it past the
// operation and never Zero it.
func (m *SessionKeyManager) EnsureKey(ctx context.Context) (*keysDomain.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case keysDomain.StateUnlocked:
		if m.key.Expired(m.now(), m.maxKeyAge) {
			m.drop()
			m.setState(keysDomain.StateLocked)
			m.appendEvent(ctx, audit.EventKeyExpired, "")
			return nil, keysDomain.ErrKeyUnavailable
		}
		return m.key, nil

	case keysDomain.StateDegraded:
		if m.now().Sub(m.lastRestoreTry) < m.retryInterval {
			return nil, keysDomain.ErrKeyUnavailable
		}
		if err := m.restoreLocked(ctx); err != nil {
			return nil, keysDomain.ErrKeyUnavailable
		}
		return m.key, nil

	default:
		return nil, keysDomain.ErrKeyUnavailable
	}
}

func (m *SessionKeyManager) restoreLocked(ctx context.Context) error {
	m.lastRestoreTry = m.now()

	restoreCtx := ctx
	if m.restoreTimeout > 0 {
		var cancel context.CancelFunc
		restoreCtx, cancel = context.WithTimeout(ctx, m.restoreTimeout)
		defer cancel()
	}

	key, err := m.vault.Unwrap(restoreCtx)
	if err != nil && m.escrow != nil {
		m.logger.Warn("backup restore failed, trying escrow", slog.String("error", err.Error()))
		key, err = m.escrow.Recover(restoreCtx)
	}
	if err != nil {
		if m.state != keysDomain.StateDegraded {
			return m.enterDegraded(ctx, "restore failed: "+err.Error())
		}
		return apperrors.Wrap(keysDomain.ErrKeyUnavailable, err.Error())
	}

	wasDegraded := m.state == keysDomain.StateDegraded
	m.install(key)
	m.appendEvent(ctx, audit.EventKeyRestored, "")
	if wasDegraded {
		m.appendEvent(ctx, audit.EventDegradedExited, "")
	}

	return nil
}

// verifyOrSealKeyCheck proves the derived key is correct against the stored
// probe, sealing a fresh probe on first unlock.
func (m *SessionKeyManager) verifyOrSealKeyCheck(ctx context.Context, key *keysDomain.EncryptionKey) error {
	check, err := m.repo.LoadKeyCheck(ctx)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
		}
		return m.sealKeyCheck(ctx, key)
	}

	cipher, err := m.vault.aeadManager.CreateCipher(key.Bytes, check.Algorithm)
	if err != nil {
		return err
	}

	plaintext, err := cipher.Decrypt(check.Ciphertext, check.Nonce, nil)
	if err != nil {
		return keysDomain.ErrDecryptionFailed
	}
	if string(plaintext) != keysDomain.KeyCheckPlaintext {
		return keysDomain.ErrDecryptionFailed
	}

	return nil
}

func (m *SessionKeyManager) sealKeyCheck(ctx context.Context, key *keysDomain.EncryptionKey) error {
	cipher, err := m.vault.aeadManager.CreateCipher(key.Bytes, m.vault.algorithm)
	if err != nil {
		return err
	}

	ciphertext, nonce, err := cipher.Encrypt([]byte(keysDomain.KeyCheckPlaintext), nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to seal key check")
	}

	check := &keysDomain.KeyCheck{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Algorithm:  m.vault.algorithm,
		CreatedAt:  m.now(),
	}

	if err := m.repo.SaveKeyCheck(ctx, check); err != nil {
		return apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	return nil
}

// refreshBackups re-wraps the current key into the vault backup and, when
// configured, the KMS escrow. Backup failures are logged but never block an
// unlock that already succeeded.
func (m *SessionKeyManager) refreshBackups(ctx context.Context, key *keysDomain.EncryptionKey) {
	if _, err := m.vault.Wrap(ctx, key); err != nil {
		m.logger.Warn("failed to refresh key backup", slog.String("error", err.Error()))
	}
	if m.escrow != nil {
		if err := m.escrow.Escrow(ctx, key); err != nil {
			m.logger.Warn("failed to refresh key escrow", slog.String("error", err.Error()))
		}
	}
}

func (m *SessionKeyManager) enterDegraded(ctx context.Context, reason string) error {
	m.setState(keysDomain.StateDegraded)
	m.appendEvent(ctx, audit.EventDegradedEntered, reason)
	m.lastRestoreTry = time.Time{}

	if err := m.restoreLocked(ctx); err != nil {
		return apperrors.Wrap(keysDomain.ErrKeyUnavailable, reason)
	}
	return nil
}

func (m *SessionKeyManager) install(key *keysDomain.EncryptionKey) {
	m.drop()
	m.key = key
	m.setState(keysDomain.StateUnlocked)
}

func (m *SessionKeyManager) drop() {
	if m.key != nil {
		m.key.Zero()
		m.key = nil
	}
}

func (m *SessionKeyManager) setState(state keysDomain.SessionState) {
	if m.state != state {
		m.logger.Debug("session state change",
			slog.String("from", string(m.state)),
			slog.String("to", string(state)))
	}
	m.state = state
}

func (m *SessionKeyManager) appendEvent(ctx context.Context, eventType audit.EventType, reason string) {
	event := audit.NewEvent(eventType)
	event.DeviceID = m.deviceID
	event.Reason = reason
	if err := m.sink.Append(ctx, event); err != nil {
		m.logger.Warn("failed to append audit event",
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}
