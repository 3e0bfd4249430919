package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Revocation marks a token as logged out until the moment it would have
// expired on its own. Only the token digest is stored.
type Revocation struct {
	Key       string    `bson:"_id" json:"key"`
	Sub       string    `bson:"sub" json:"sub"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Key returns the storage key for a raw token.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
