package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID creates a unique id for a cleaning run
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// GenerateContentHash returns a short, stable fingerprint of file content
func GenerateContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return "sha_" + hex.EncodeToString(hash[:])[:12]
}

// CalculateTTL returns a DynamoDB TTL timestamp duration from now
func CalculateTTL(duration time.Duration) int64 {
	return time.Now().Add(duration).Unix()
}

// FormatRowCounts renders kept/rejected counts for log lines
func FormatRowCounts(kept, rejected int) string {
	return fmt.Sprintf("%d kept, %d rejected", kept, rejected)
}
