// ABOUTME: Clock tool answering "what time is it" intents
// ABOUTME: Formats the current wall-clock time for the user

package tools

import (
	"context"
	"fmt"
	"time"
)

// ClockTool reports the current date and time.
type ClockTool struct {
	now func() time.Time
}

// NewClockTool creates a clock tool using the system clock.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "clock" }

func (t *ClockTool) Description() string {
	return "Responde con la fecha y hora actuales."
}

func (t *ClockTool) Execute(_ context.Context, _ Request) (string, error) {
	now := t.now()
	return fmt.Sprintf("Son las %s del %s.",
		now.Format("15:04"),
		now.Format("2006-01-02")), nil
}
