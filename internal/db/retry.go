package db

import (
	"strings"
	"time"
)

const maxBusyRetries = 5

// isSQLiteBusy reports whether err is sqlite's "database is locked" error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn until it succeeds, fails with a non-busy error or
// has been tried maxBusyRetries times. The wait doubles between attempts.
func retryOnBusy(fn func() error) error {
	wait := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxBusyRetries-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}
	return err
}
