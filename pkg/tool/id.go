package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered id for rows that are paged by id.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewToken returns a random opaque token, e.g. for lock ownership or trace ids.
func NewToken() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID in any accepted form.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
