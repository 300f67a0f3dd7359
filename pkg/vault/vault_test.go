/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package vault

import (
	"testing"

	"gotest.tools/assert"
)

func newTestVault() *Vault {
	return &Vault{
		masterSecret: []byte("test-master-secret"),
		salt:         []byte("test-salt"),
		keys:         make(map[string][]byte),
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	v := newTestVault()

	sealed, err := v.sealWith("key-1", "s3cret-pa55word")
	assert.NilError(t, err)
	assert.Equal(t, ActiveKeyId(sealed), "key-1")

	plain, err := v.Open(sealed)
	assert.NilError(t, err)
	assert.Equal(t, plain, "s3cret-pa55word")
}

func TestOpenMalformedValue(t *testing.T) {
	v := newTestVault()

	_, err := v.Open("no-separator-here")
	assert.ErrorContains(t, err, "malformed sealed value")

	_, err = v.Open(":missing-key-id")
	assert.ErrorContains(t, err, "malformed sealed value")
}

func TestOpenWrongSecretFails(t *testing.T) {
	v := newTestVault()
	sealed, err := v.sealWith("key-1", "plaintext")
	assert.NilError(t, err)

	other := newTestVault()
	other.masterSecret = []byte("different-secret")
	_, err = other.Open(sealed)
	assert.ErrorContains(t, err, "failed to open sealed value")
}

func TestDeriveKeyPerKeyIsolation(t *testing.T) {
	v := newTestVault()

	k1 := v.deriveKey("key-1")
	k2 := v.deriveKey("key-2")
	assert.Equal(t, len(k1), 32)
	assert.Assert(t, string(k1) != string(k2))

	// cached derivation stays stable
	again := v.deriveKey("key-1")
	assert.Equal(t, string(again), string(k1))
}

func TestFingerprintDependsOnSecret(t *testing.T) {
	v := newTestVault()
	other := newTestVault()
	other.masterSecret = []byte("different-secret")

	assert.Assert(t, v.fingerprint("key-1") != other.fingerprint("key-1"))
	assert.Equal(t, v.fingerprint("key-1"), newTestVault().fingerprint("key-1"))
}
