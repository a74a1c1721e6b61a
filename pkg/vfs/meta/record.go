package meta

import (
	"math"
	"time"
)

// NeverExpires is the expiry stored for locks taken without a timeout.
var NeverExpires = time.Unix(0, math.MaxInt64).UTC()

// LockRecord is the persisted state of a file lock.
type LockRecord struct {
	Token   string
	Expires time.Time
}

// Active reports whether the lock is still in force at now.
func (r *LockRecord) Active(now time.Time) bool {
	return r != nil && now.Before(r.Expires)
}

// Permanent reports whether the lock never expires.
func (r *LockRecord) Permanent() bool {
	return r != nil && r.expiryNanos() == math.MaxInt64
}

func (r LockRecord) expiryNanos() int64 {
	if r.Expires.IsZero() || !r.Expires.Before(NeverExpires) {
		return math.MaxInt64
	}
	return r.Expires.UnixNano()
}

func lockRecordFromNanos(token string, nanos int64) *LockRecord {
	if nanos == math.MaxInt64 {
		return &LockRecord{Token: token, Expires: NeverExpires}
	}
	return &LockRecord{Token: token, Expires: time.Unix(0, nanos).UTC()}
}
