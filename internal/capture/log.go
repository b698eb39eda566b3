package capture

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

// LogFilename is the capture log name inside a session directory.
const LogFilename = "captured_links.txt"

// Log is the append-only capture file shared by the proxy (writer) and the
// correlator (reader, then deleter).
type Log struct {
	path string
}

// NewLog returns the capture log stored in dir.
func NewLog(dir string) *Log {
	return &Log{path: filepath.Join(dir, LogFilename)}
}

// Path returns the file path of the log.
func (l *Log) Path() string { return l.path }

// Append adds a record. The proxy addon writes the same format on its own.
func (l *Log) Append(rec Record) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 - path built from session dir
	if err != nil {
		return errors.Wrap(err, "open capture log")
	}
	if _, err := f.WriteString(rec.String() + "\n"); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "append capture record")
	}
	return f.Close()
}

// Read returns every well-formed record in log order. A missing log reads as
// empty.
func (l *Log) Read() ([]Record, error) {
	f, err := os.Open(l.path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "open capture log")
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			util.Debug("Ignoring capture line", "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read capture log")
	}
	return records, nil
}

// Remove deletes the log. Removing a missing log is not an error.
func (l *Log) Remove() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove capture log")
	}
	return nil
}
