package obs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// CacheEvent is one structured line describing a notable cache transition.
type CacheEvent struct {
	Timestamp string `json:"ts"`
	Event     string `json:"event"`
	Key       string `json:"key,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Removed   int    `json:"removed,omitempty"`
	Restored  int    `json:"restored,omitempty"`
	Size      int    `json:"size"`
	Error     string `json:"error,omitempty"`
}

type EventLog struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewEventLog(out io.Writer) *EventLog {
	if out == nil {
		out = os.Stdout
	}
	return &EventLog{out: out, now: time.Now}
}

func (l *EventLog) Log(event CacheEvent) {
	if l == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	}
	event.Event = defaultString(event.Event, "unknown")

	data, err := json.Marshal(event)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		_, _ = fmt.Fprintf(l.out, "log_marshal_error event=%s error=%v\n", event.Event, err)
		return
	}
	_, _ = l.out.Write(append(data, '\n'))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
