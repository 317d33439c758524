package console

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TeeWriter duplicates every byte written to it into the session's log
// viewport and, when one is configured, a persistent logfile on disk. Its
// role mirrors the original interpreter's teestream.h: statements and
// their output are visible live and recorded for later review.
type TeeWriter struct {
	log  *LogViewModel
	file *os.File
}

// NewTeeWriter opens a logfile named after a fresh session UUID under dir
// (when dir is non-empty) and returns a writer that mirrors everything
// into both the logfile and the given log viewport. A write failure to the
// logfile is logged and otherwise ignored; console output must never block
// on disk I/O.
func NewTeeWriter(view *LogViewModel, dir string) *TeeWriter {
	t := &TeeWriter{log: view}
	if dir == "" {
		return t
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Warn("could not create session log directory")
		return t
	}
	name := filepath.Join(dir, fmt.Sprintf("session-%s.log", uuid.NewString()))
	f, err := os.Create(name)
	if err != nil {
		log.WithError(err).Warn("could not create session log file")
		return t
	}
	log.WithField("path", name).Info("session log opened")
	t.file = f
	return t
}

// Write satisfies io.Writer, appending the bytes to the log viewport as a
// stdout entry and, when a logfile is open, to disk as well.
func (t *TeeWriter) Write(p []byte) (int, error) {
	if t.log != nil {
		t.log.AppendEntry(LogEntry{Type: LogStdout, Text: string(p)})
	}
	if t.file != nil {
		if _, err := t.file.Write(p); err != nil {
			log.WithError(err).Warn("session log write failed")
		}
	}
	return len(p), nil
}

// Close closes the backing logfile, if one was opened.
func (t *TeeWriter) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}
