package es

import (
	"github.com/spf13/cast"
)

// DocCount is one observation of an index's document count. An unreachable
// cluster or a malformed count response yields an unknown count, which is
// distinct from a known count of zero and never compares equal to anything.
type DocCount struct {
	value uint64
	known bool
}

func KnownCount(value uint64) DocCount {
	return DocCount{value: value, known: true}
}

func UnknownCount() DocCount {
	return DocCount{}
}

func (c DocCount) IsKnown() bool {
	return c.known
}

// Value returns the observed count. Only meaningful when IsKnown.
func (c DocCount) Value() uint64 {
	return c.value
}

// Equals reports whether both counts were actually observed and match.
// It is false whenever either side is unknown.
func (c DocCount) Equals(other DocCount) bool {
	return c.known && other.known && c.value == other.value
}

func (c DocCount) String() string {
	if !c.known {
		return "unknown"
	}
	return cast.ToString(c.value)
}
