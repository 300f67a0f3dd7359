/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package jsonutil

import (
	"encoding/json"

	"k8s.io/klog/v2"
)

// MarshalSilently marshals the object and swallows the error, logging it
// instead. Intended for values that are known to be marshalable.
func MarshalSilently(obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		klog.ErrorS(err, "failed to marshal object")
		return nil
	}
	return data
}

// UnmarshalStrings decodes a JSON string array, returning nil on any error.
func UnmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}

// MarshalStrings encodes a string slice as a JSON array. A nil or empty
// slice encodes as "[]" so the column is never SQL-null by accident.
func MarshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	return string(MarshalSilently(values))
}
