/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Base64Encode encodes a string to base64 format.
func Base64Encode(inputString string) string {
	if inputString == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(inputString))
}

// Base64Decode decodes a base64 encoded string, returns empty string if decode fails.
func Base64Decode(inputString string) string {
	if inputString == "" {
		return ""
	}
	decodedBytes, err := base64.StdEncoding.DecodeString(inputString)
	if err != nil {
		return ""
	}
	return string(decodedBytes)
}

// SHA256Hex returns the hex-encoded SHA-256 digest of the input bytes.
func SHA256Hex(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Truncate shortens a string to at most limit bytes without splitting a rune.
func Truncate(str string, limit int) string {
	if limit <= 0 || len(str) <= limit {
		return str
	}
	for limit > 0 && !utf8.RuneStart(str[limit]) {
		limit--
	}
	return str[:limit]
}

// NormalizeName converts string to lowercase, trims whitespace, and replaces underscores with hyphens.
func NormalizeName(str string) string {
	if str == "" {
		return ""
	}
	str = strings.ToLower(str)
	str = strings.TrimSpace(str)
	str = strings.ReplaceAll(str, "_", "-")
	return str
}

// SplitNonEmpty splits a comma separated list and drops blank elements.
func SplitNonEmpty(str string) []string {
	var result []string
	for _, val := range strings.Split(str, ",") {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}
