package logger

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultRecentCapacity = 500

type RecentEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// RecentLogs keeps the newest log entries in memory so operators can read
// them over the internal HTTP surface without shell access to the host.
type RecentLogs struct {
	mu      sync.RWMutex
	entries []RecentEntry
	next    int
	filled  bool
}

func NewRecentLogs(capacity int) *RecentLogs {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentLogs{entries: make([]RecentEntry, capacity)}
}

// Attach wraps the logger so every record it emits is also retained here.
func (r *RecentLogs) Attach(base *zap.Logger) *zap.Logger {
	if base == nil || r == nil {
		return base
	}

	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &teeCore{Core: core, sink: r}
	}))
}

// Tail returns up to n entries, newest first.
func (r *RecentLogs) Tail(n int) []RecentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.filled {
		size = len(r.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]RecentEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}

func (r *RecentLogs) record(entry zapcore.Entry, fields []zapcore.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}
	var fieldMap map[string]interface{}
	if len(enc.Fields) > 0 {
		fieldMap = enc.Fields
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = RecentEntry{
		Timestamp: entry.Time.UTC(),
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Caller:    entry.Caller.TrimmedPath(),
		Fields:    fieldMap,
	}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.filled = true
	}
}

type teeCore struct {
	zapcore.Core
	sink *RecentLogs
}

func (c *teeCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *teeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.sink.record(entry, fields)
	return c.Core.Write(entry, fields)
}

func (c *teeCore) With(fields []zapcore.Field) zapcore.Core {
	return &teeCore{Core: c.Core.With(fields), sink: c.sink}
}
