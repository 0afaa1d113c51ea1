package types

import "time"

// Unix timestamp at millisecond resolution
type UnixMilli int64

func NewUnixMilli(t time.Time) UnixMilli {
	return UnixMilli(t.UTC().UnixMilli())
}
