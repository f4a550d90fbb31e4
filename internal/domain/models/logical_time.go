package models

import (
	"fmt"
	"math"
	"time"
)

// LogicalTime is a point in cluster time: whole seconds plus an increment
// that orders events within the same second.
// LogicalTime 表示集群时间中的一个点：整秒数加上同一秒内排序事件的增量。
type LogicalTime struct {
	// Secs is the seconds component.
	// Secs 是秒数部分。
	Secs uint32 `json:"secs"`
	// Inc is the increment within Secs.
	// Inc 是 Secs 内的增量。
	Inc uint32 `json:"inc"`
}

// NewLogicalTime builds a LogicalTime from its components.
func NewLogicalTime(secs, inc uint32) LogicalTime {
	return LogicalTime{Secs: secs, Inc: inc}
}

// LogicalTimeFromUint64 decodes the packed representation produced by AsUint64.
func LogicalTimeFromUint64(v uint64) LogicalTime {
	return LogicalTime{Secs: uint32(v >> 32), Inc: uint32(v)}
}

// AsUint64 packs the time so that numeric order equals time order.
func (t LogicalTime) AsUint64() uint64 {
	return uint64(t.Secs)<<32 | uint64(t.Inc)
}

// Compare returns -1, 0 or +1 when t is before, equal to, or after other.
func (t LogicalTime) Compare(other LogicalTime) int {
	a, b := t.AsUint64(), other.AsUint64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly before other.
func (t LogicalTime) Before(other LogicalTime) bool { return t.Compare(other) < 0 }

// After reports whether t is strictly after other.
func (t LogicalTime) After(other LogicalTime) bool { return t.Compare(other) > 0 }

// IsZero reports whether t is the zero time.
func (t LogicalTime) IsZero() bool { return t.Secs == 0 && t.Inc == 0 }

// AddSeconds returns t advanced by secs seconds, keeping Inc. The result
// saturates at the largest representable second.
func (t LogicalTime) AddSeconds(secs uint64) LogicalTime {
	sum := uint64(t.Secs) + secs
	if sum > math.MaxUint32 {
		sum = math.MaxUint32
	}
	return LogicalTime{Secs: uint32(sum), Inc: t.Inc}
}

// Add returns t advanced by d, truncated to whole seconds. Negative
// durations leave t unchanged.
func (t LogicalTime) Add(d time.Duration) LogicalTime {
	if d <= 0 {
		return t
	}
	return t.AddSeconds(uint64(d / time.Second))
}

// Sub returns the wall-clock distance from other to t in whole seconds.
// The increment does not contribute.
func (t LogicalTime) Sub(other LogicalTime) time.Duration {
	return time.Duration(int64(t.Secs)-int64(other.Secs)) * time.Second
}

// String renders the time as Timestamp(secs, inc).
func (t LogicalTime) String() string {
	return fmt.Sprintf("Timestamp(%d, %d)", t.Secs, t.Inc)
}

// MaxLogicalTime returns the larger of a and b.
func MaxLogicalTime(a, b LogicalTime) LogicalTime {
	if a.After(b) {
		return a
	}
	return b
}
