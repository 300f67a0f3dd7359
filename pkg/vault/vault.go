/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package vault seals and opens device credentials. Key material never
// touches the catalog: each key id maps to an AES-256 key derived from the
// master secret, the configured salt, and the key id itself, so the db only
// stores key metadata and "keyid:base64" sealed values.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/crypto"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

const sealSeparator = ":"

// Vault derives per-key AES material from a master secret and manages the
// active-key lifecycle in the catalog.
type Vault struct {
	dbClient *client.Client

	masterSecret []byte
	salt         []byte

	mu   sync.RWMutex
	keys map[string][]byte // key id -> derived key material
}

// New builds a Vault from configuration. Fails fast when the master secret
// or salt is missing so a misconfigured process never starts half-working.
func New(dbClient *client.Client) (*Vault, error) {
	secret := commonconfig.GetVaultMasterSecret()
	salt := commonconfig.GetEncryptionSalt()
	if secret == "" {
		return nil, commonerrors.NewVaultError("master secret not configured")
	}
	if salt == "" {
		return nil, commonerrors.NewVaultError("encryption salt not configured")
	}
	return &Vault{
		dbClient:     dbClient,
		masterSecret: []byte(secret),
		salt:         []byte(salt),
		keys:         make(map[string][]byte),
	}, nil
}

// Bootstrap ensures an active key exists, creating the first one on a fresh
// install, and verifies the configured master secret can actually open the
// active key by checking the stored fingerprint.
func (v *Vault) Bootstrap(ctx context.Context) error {
	active, err := v.dbClient.GetActiveEncryptionKey(ctx)
	if commonerrors.IsNotFound(err) {
		keyId := uuid.NewString()
		key := &client.EncryptionKey{
			KeyId:       keyId,
			Active:      true,
			Fingerprint: v.fingerprint(keyId),
			CreateTime:  dbutils.NullTime(time.Now().UTC()),
		}
		if err = v.dbClient.InsertEncryptionKey(ctx, key); err != nil {
			return err
		}
		klog.Infof("vault bootstrap: created initial key %s", keyId)
		return nil
	}
	if err != nil {
		return err
	}
	if active.Fingerprint != v.fingerprint(active.KeyId) {
		return commonerrors.NewVaultError(
			fmt.Sprintf("master secret does not match active key %s", active.KeyId))
	}
	return nil
}

// Seal encrypts plaintext under the active key and returns "keyid:base64".
func (v *Vault) Seal(ctx context.Context, plaintext string) (string, error) {
	active, err := v.dbClient.GetActiveEncryptionKey(ctx)
	if err != nil {
		return "", commonerrors.NewVaultError(fmt.Sprintf("no active key: %v", err))
	}
	return v.sealWith(active.KeyId, plaintext)
}

// Open decrypts a sealed value produced by Seal, resolving the key from the
// embedded key id.
func (v *Vault) Open(sealed string) (string, error) {
	keyId, cipherText, found := strings.Cut(sealed, sealSeparator)
	if !found || keyId == "" {
		return "", commonerrors.NewVaultError("malformed sealed value")
	}
	plain, err := crypto.Decrypt(cipherText, v.deriveKey(keyId))
	if err != nil {
		return "", commonerrors.NewVaultError(fmt.Sprintf("failed to open sealed value: %v", err))
	}
	return string(plain), nil
}

// ActiveKeyId returns the id embedded in a sealed value.
func ActiveKeyId(sealed string) string {
	keyId, _, _ := strings.Cut(sealed, sealSeparator)
	return keyId
}

// Rotate mints a new key and re-seals every credential under it; the reseal
// and the active-key flip commit in the same transaction. A failure anywhere
// leaves both the credentials and the active key untouched.
func (v *Vault) Rotate(ctx context.Context) (string, error) {
	newKeyId := uuid.NewString()
	key := &client.EncryptionKey{
		KeyId:       newKeyId,
		Active:      false,
		Fingerprint: v.fingerprint(newKeyId),
		CreateTime:  dbutils.NullTime(time.Now().UTC()),
	}
	if err := v.dbClient.InsertEncryptionKey(ctx, key); err != nil {
		return "", err
	}

	err := v.dbClient.RotateCredentials(ctx, newKeyId, func(sealed, keyId string) (string, error) {
		plain, err := v.Open(sealed)
		if err != nil {
			return "", err
		}
		return v.sealWith(newKeyId, plain)
	})
	if err != nil {
		return "", err
	}
	klog.Infof("vault rotation complete, active key is now %s", newKeyId)
	return newKeyId, nil
}

func (v *Vault) sealWith(keyId, plaintext string) (string, error) {
	cipherText, err := crypto.Encrypt([]byte(plaintext), v.deriveKey(keyId))
	if err != nil {
		return "", commonerrors.NewVaultError(fmt.Sprintf("failed to seal value: %v", err))
	}
	return keyId + sealSeparator + cipherText, nil
}

// deriveKey returns cached key material for keyId, deriving it on first use.
func (v *Vault) deriveKey(keyId string) []byte {
	v.mu.RLock()
	key, ok := v.keys[keyId]
	v.mu.RUnlock()
	if ok {
		return key
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok = v.keys[keyId]; ok {
		return key
	}
	key = crypto.DeriveKey(v.masterSecret, append(v.salt, []byte(keyId)...))
	v.keys[keyId] = key
	return key
}

// fingerprint binds a key id to the master secret without revealing either.
func (v *Vault) fingerprint(keyId string) string {
	sum := sha256.Sum256(v.deriveKey(keyId))
	return hex.EncodeToString(sum[:16])
}
