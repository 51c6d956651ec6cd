package limitkit

import "time"

// Clock supplies the current wall-clock instant. The default is time.Now;
// tests inject a fixed clock to make window-boundary behavior deterministic.
//
// Every time-dependent computation within a single Limit call reads the
// clock exactly once, at entry.
type Clock func() time.Time
