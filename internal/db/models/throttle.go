package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ThrottleComponent names a category of rate-limited action.
type ThrottleComponent string

const (
	// ThrottleComponentJob counts job submissions observed on the job stream.
	ThrottleComponentJob ThrottleComponent = "JOB"
)

// ThrottleRecord counts invocations of a component by a user inside one
// fixed-length window beginning at WindowStart.
type ThrottleRecord struct {
	bun.BaseModel `bun:"table:throttle_records,alias:tr"`

	Username    string            `bun:"username,pk"`
	Component   ThrottleComponent `bun:"component,pk"`
	Invocations int               `bun:"invocations,notnull,default:0"`
	WindowStart time.Time         `bun:"window_start,notnull"`
}
