package helper

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/oklog/ulid"
)

// SecretLength is the length of generated credential secrets.
const SecretLength = 64

// GenerateSecret returns a random base62 credential secret.
func GenerateSecret() (string, error) {
	s, err := base62.Random(SecretLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return s, nil
}

// GenerateID returns a random identifier as 32 lowercase hex characters.
func GenerateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateEventID returns a time-sortable identifier for audit events.
func GenerateEventID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// StableID derives a 32 hex character identifier from parts. The same parts
// always yield the same ID, which keeps configured identities stable across
// restarts.
func StableID(parts ...string) string {
	name := strings.Join(parts, "/")
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(), "-", "")
}
