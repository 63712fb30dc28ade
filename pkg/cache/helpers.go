package cache

/*
Just a set of utility to achieve DRY with backing storage.
*/

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const (
	// The minimum expiry given to an entry.
	MinExpiry = time.Hour

	deadlineLen = 4
)

// GracePeriodDeadline gives an entry twice as long to live as it has
// until its refresh deadline, and never less than MinExpiry.
func GracePeriodDeadline(refreshDeadline time.Time) time.Duration {
	expiry := time.Until(refreshDeadline) * 2
	if expiry < MinExpiry {
		expiry = MinExpiry
	}
	return expiry
}

func EndianCompose(deadlineBytes, value []byte) []byte {
	return append(deadlineBytes, value...)
}

func EndianPut(refreshDeadline time.Time) []byte {
	deadlineBytes := make([]byte, deadlineLen)
	binary.BigEndian.PutUint32(deadlineBytes, uint32(refreshDeadline.Unix()))
	return deadlineBytes
}

func EndianGet(cacheItem []byte) ([]byte, time.Time, error) {
	if len(cacheItem) < deadlineLen {
		return nil, time.Time{}, errors.Errorf("cache item of %d bytes has no deadline", len(cacheItem))
	}
	deadlineTime := binary.BigEndian.Uint32(cacheItem)
	return cacheItem[deadlineLen:], time.Unix(int64(deadlineTime), 0), nil
}
