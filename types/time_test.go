package types

import (
	"testing"
	"time"
)

func TestMillis(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 678_900_000, time.UTC)
	ms := TimeToMillis(at)
	if ms != 1704164645678 {
		t.Fatalf("TimeToMillis = %d", ms)
	}
	if got := MillisToTime(ms); !got.Equal(at.Truncate(time.Millisecond)) {
		t.Fatalf("MillisToTime = %s", got)
	}
	if TimeToMillis(time.Unix(-10, 0)) != 0 {
		t.Fatal("pre-epoch time must clamp to zero")
	}
	p := TxPayload{CreatedAtMillis: ms}
	if p.CreatedAt().Location() != time.UTC {
		t.Fatal("CreatedAt must be UTC")
	}
}
