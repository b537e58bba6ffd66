// Package hashutil derives stable content hashes for ETags and cache keys.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// JSON returns the hex sha256 of the JSON encoding of v.
func JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ETag hashes v and logs on failure, returning "" when v cannot be encoded.
func ETag(logger *zap.Logger, label string, v any) string {
	return hashWithLogger(logger, label, func() (string, error) {
		return JSON(v)
	})
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
