package crew

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ternarybob/swarmcrew/internal/models"
)

const (
	// CostPerMillisecond is the placeholder duration-based price
	CostPerMillisecond = 0.00001

	// ResultHashScheme prefixes every result hash
	ResultHashScheme = "ipfs://"

	resultHashHexLen = 46
)

// ResultHash fingerprints result content as the scheme plus the first
// 46 hex characters of its SHA-256. No content is stored anywhere.
func ResultHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return ResultHashScheme + hex.EncodeToString(sum[:])[:resultHashHexLen]
}

// EstimateCost prices a run by the summed stage durations
func EstimateCost(results []models.StageResult) float64 {
	var totalMs int64
	for _, r := range results {
		totalMs += r.ExecutionTimeMs
	}
	return float64(totalMs) * CostPerMillisecond
}
