package limitkit

import (
	"strconv"
	"strings"
)

// counterKey builds the store key for one (prefix, identifier, window index)
// triple: "<prefix>:<id>:<decimal index>". The identifier participates
// verbatim; the index may be negative. Keys are opaque byte strings to the
// store, so two limiters sharing a prefix, identifier and window length
// share counters.
func counterKey(prefix, id string, index int64) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(id) + 22)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(id)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(index, 10))
	return b.String()
}

// windowIndex is the epoch-aligned window containing nowMS, flooring toward
// negative infinity so pre-epoch instants land in the correct window.
func windowIndex(nowMS, windowMS int64) int64 {
	idx := nowMS / windowMS
	if nowMS%windowMS < 0 {
		idx--
	}
	return idx
}
