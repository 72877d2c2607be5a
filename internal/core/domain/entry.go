package domain

import "time"

// Entry is a key with its value and optional absolute expiry.
//
// It is produced both by runtime writes and by snapshot decoding.
type Entry struct {
	Key   string
	Value []byte

	// ExpireAt is the absolute expiry in Unix milliseconds, 0 for none.
	ExpireAt int64
}

// HasExpiry reports whether the entry carries an expiry instant.
func (e Entry) HasExpiry() bool {
	return e.ExpireAt > 0
}

// ExpiredAt reports whether the entry is expired at the given instant.
func (e Entry) ExpiredAt(now time.Time) bool {
	return e.ExpireAt > 0 && e.ExpireAt <= now.UnixMilli()
}

// IsExpired reports whether the entry is expired now.
func (e Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// TTL returns the time left before expiry, or 0 if none is set.
// An expired entry returns a negative duration.
func (e Entry) TTL() time.Duration {
	if e.ExpireAt == 0 {
		return 0
	}
	return time.Until(time.UnixMilli(e.ExpireAt))
}

// Role is the replication role of the process, fixed at startup.
type Role string

const (
	RoleMaster  Role = "master"
	RoleReplica Role = "slave"
)
