/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package crypto

import (
	"testing"

	"gotest.tools/assert"
)

func TestCrypto(t *testing.T) {
	key := DeriveKey([]byte("master-secret"), []byte("pepper-1234"))
	message := "enable-secret-1756370912"
	ciphertext, err := Encrypt([]byte(message), key)
	assert.NilError(t, err)
	assert.Assert(t, ciphertext != message)

	decrypted, err := Decrypt(ciphertext, key)
	assert.NilError(t, err)
	assert.Equal(t, message, string(decrypted))
}

func TestDecryptWrongKey(t *testing.T) {
	key := DeriveKey([]byte("master-secret"), []byte("salt-a"))
	other := DeriveKey([]byte("master-secret"), []byte("salt-b"))
	ciphertext, err := Encrypt([]byte("community-string"), key)
	assert.NilError(t, err)

	_, err = Decrypt(ciphertext, other)
	assert.ErrorContains(t, err, "failed to decrypt")
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey([]byte("s"), []byte("salt"))
	k2 := DeriveKey([]byte("s"), []byte("salt"))
	assert.Equal(t, len(k1), KeyLen)
	assert.DeepEqual(t, k1, k2)
}

func TestDecryptGarbage(t *testing.T) {
	key := DeriveKey([]byte("s"), []byte("salt"))
	_, err := Decrypt("%%%not-base64%%%", key)
	assert.ErrorContains(t, err, "invalid ciphertext encoding")

	_, err = Decrypt("AAAA", key)
	assert.ErrorContains(t, err, "shorter than nonce")
}
