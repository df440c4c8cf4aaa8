package logx

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultRingSize = 500

// Event is one retained log line.
//
// This is the shape served by the web log feed and written by export-logs.
type Event struct {
	Time    time.Time `json:"timestamp"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Ring retains the most recent Events in a fixed-size buffer.
// Append-only from the logging path; readers get copies.
type Ring struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	full  bool
	total uint64
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Append(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.total++
	r.mu.Unlock()
}

// Last returns up to n events, oldest first. n <= 0 means all retained.
func (r *Ring) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	if r.full {
		out = make([]Event, 0, len(r.buf))
		out = append(out, r.buf[r.next:]...)
		out = append(out, r.buf[:r.next]...)
	} else {
		out = append(out, r.buf[:r.next]...)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Total reports how many events were ever appended (including evicted ones).
func (r *Ring) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// ---- zerolog sink ----

// ringWriter decodes zerolog JSON lines into Events.
// Decode failures fall back to the raw line so nothing is lost.
type ringWriter struct{ ring *Ring }

func (w *ringWriter) Write(p []byte) (int, error) {
	lvl := zerolog.InfoLevel
	var probe struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &probe); err == nil && probe.Level != "" {
		if parsed, err := zerolog.ParseLevel(probe.Level); err == nil {
			lvl = parsed
		}
	}
	return w.WriteLevel(lvl, p)
}

func (w *ringWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if w.ring == nil {
		return len(p), nil
	}

	e := Event{Level: level.String()}

	var m map[string]any
	if err := json.Unmarshal(p, &m); err == nil {
		if msg, _ := m["message"].(string); msg != "" {
			e.Message = msg
		}
		if ts, _ := m["time"].(string); ts != "" {
			if t, err := time.Parse(consoleTimeFormat, ts); err == nil {
				e.Time = t
			}
		}
		// Keep structured fields readable in the flat message.
		var extras []string
		for k, v := range m {
			switch k {
			case "time", "level", "message", "caller":
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			extras = append(extras, k+"="+string(b))
		}
		if len(extras) > 0 {
			sortStrings(extras)
			e.Message += " " + strings.Join(extras, " ")
		}
	} else {
		e.Message = strings.TrimSpace(string(p))
	}

	w.ring.Append(e)
	return len(p), nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
