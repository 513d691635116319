package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
// Time-ordered IDs double as the insertion-order tie-break in the rule store.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// RuleIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func RuleIDTime(id RuleID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
