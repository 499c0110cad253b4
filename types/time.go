package types

import "time"

// TimeToMillis converts t to milliseconds since the Unix epoch, the
// resolution of TxPayload.CreatedAtMillis. Times before the epoch map
// to zero.
func TimeToMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// MillisToTime converts milliseconds since the Unix epoch to a UTC time.
func MillisToTime(ms uint64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// CreatedAt returns the creation time stamped on the payload.
func (p TxPayload) CreatedAt() time.Time {
	return MillisToTime(p.CreatedAtMillis)
}
