package token

import "time"

// IsExpired reports whether a stored record must be refreshed before use.
// A missing record, a missing expiry field or an unparseable expiry are all
// treated as expired. Otherwise the record is expired only when now is
// strictly after the expiry instant.
func IsExpired(record Record, found bool, now time.Time) bool {
	if !found || record == nil {
		return true
	}

	expiry, ok := record.ExpireTime()
	if !ok {
		return true
	}

	return now.After(expiry)
}

// Expired is IsExpired evaluated against the wall clock.
func Expired(record Record, found bool) bool {
	return IsExpired(record, found, time.Now())
}
