// Package daylog appends one line per generated clip to a per-day log file
// kept beside the audio output.
package daylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
)

const (
	fileNameSuffix  = "_log.txt"
	fileNameDayForm = "20060102"
	filePermissions = 0o644
	lineFormat      = "%s : %s\n"
)

// utf8BOM is written once when the file is created so editors that expect a
// byte-order mark open the log correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer appends generation records to the current day's log file in a given
// directory. Failures never propagate: a log line that cannot be written is
// reported to the diagnostic logger and dropped, so a full disk or a locked
// file cannot abort a batch job.
type Writer struct {
	log *logger.Logger
	now func() time.Time
}

// New creates a Writer that timestamps entries with the local clock.
func New(log *logger.Logger) *Writer {
	return &Writer{
		log: log,
		now: time.Now,
	}
}

// FileName returns the log filename for the given day.
func FileName(day time.Time) string {
	return day.Format(fileNameDayForm) + fileNameSuffix
}

// Append records one generated clip: the filename it was written under and
// its source text collapsed to a single line. The file is created with a
// UTF-8 byte-order mark on first use and opened in append mode afterwards.
func (w *Writer) Append(dir, clipFileName, sourceText string) {
	path := filepath.Join(dir, FileName(w.now()))

	_, statErr := os.Stat(path)
	needsBOM := os.IsNotExist(statErr)

	file, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermissions)
	if openErr != nil {
		w.log.Warn("Failed to open daily log '%s': %v", path, openErr)

		return
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			w.log.Warn("Failed to close daily log '%s': %v", path, closeErr)
		}
	}()

	if needsBOM {
		_, bomErr := file.Write(utf8BOM)
		if bomErr != nil {
			w.log.Warn("Failed to write BOM to daily log '%s': %v", path, bomErr)

			return
		}
	}

	line := fmt.Sprintf(lineFormat, clipFileName, Collapse(sourceText))

	_, writeErr := file.WriteString(line)
	if writeErr != nil {
		w.log.Warn("Failed to append to daily log '%s': %v", path, writeErr)
	}
}

// Collapse replaces every whitespace run, including embedded newlines, with a
// single space.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
