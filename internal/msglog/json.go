package msglog

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
)

// Record is one logged message. Payload marshals as base64, making the file
// newline-delimited JSON that round-trips raw binary payloads.
type Record struct {
	Time    time.Time `json:"time"`
	Tags    string    `json:"tags,omitempty"`
	Type    uint16    `json:"type"`
	Sender  uint16    `json:"sender"`
	Payload []byte    `json:"payload"`
}

// JSONAppender persists every message it sees as one JSON record per line.
// Registered on the dispatch wildcard slot. Writes are buffered; Close
// flushes and is idempotent.
type JSONAppender struct {
	log  zerolog.Logger
	tags string
	now  func() time.Time

	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	closed bool
}

// Create truncates (or creates) path and logs into it.
func Create(path, tags string, log zerolog.Logger) (*JSONAppender, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newAppender(f, tags, log), nil
}

// Append opens path for appending, creating it if needed. Used for the
// long-running append log decorated with caller tags.
func Append(path, tags string, log zerolog.Logger) (*JSONAppender, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return newAppender(f, tags, log), nil
}

func newAppender(f *os.File, tags string, log zerolog.Logger) *JSONAppender {
	return &JSONAppender{
		log:  log,
		tags: tags,
		now:  time.Now,
		f:    f,
		w:    bufio.NewWriterSize(f, 64*1024),
	}
}

func (a *JSONAppender) HandleMessage(m sbp.Message) {
	rec := Record{
		Time:    a.now().UTC(),
		Tags:    a.tags,
		Type:    m.Type,
		Sender:  m.Sender,
		Payload: m.Payload,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		a.log.Error().Err(err).Msg("marshal log record")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if _, err := a.w.Write(append(b, '\n')); err != nil {
		a.log.Error().Err(err).Str("file", a.f.Name()).Msg("append log record")
	}
}

// Flush pushes buffered records to the file without closing it.
func (a *JSONAppender) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.w.Flush()
}

// Close flushes and closes the file. Safe to call more than once.
func (a *JSONAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.w.Flush(); err != nil {
		_ = a.f.Close()
		return err
	}
	return a.f.Close()
}

// DefaultLogName builds the autogenerated log filename for t, mirroring the
// serial-link-YYYYMMDD-HHMMSS.log.json convention.
func DefaultLogName(t time.Time) string {
	return t.Format("serial-link-20060102-150405.log.json")
}
