package ledger

import (
	"testing"
	"time"
)

func TestNullableTime_ZeroBecomesNil(t *testing.T) {
	if got := nullableTime(time.Time{}); got != nil {
		t.Errorf("nullableTime(zero) = %v, want nil", got)
	}
}

func TestNullableTime_NonZeroPassesThrough(t *testing.T) {
	now := time.Now()
	got, ok := nullableTime(now).(time.Time)
	if !ok || !got.Equal(now) {
		t.Errorf("nullableTime(now) = %v, want %v", got, now)
	}
}
