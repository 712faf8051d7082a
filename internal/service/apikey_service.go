// Package service contains the business logic layer.
package service

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateAPIKey mints a new bearer credential in the form "pixie_<32 hex
// characters>". Called exactly once per user, at account creation time, by
// every identity surface (OAuth callback, native token exchange, device flow).
func GenerateAPIKey() string {
	return "pixie_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
