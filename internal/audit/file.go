package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// maxLineBytes bounds a single JSONL record when reading a history back.
const maxLineBytes = 8 << 20

// FileLog stores each category as a JSONL file (<dir>/<category>.jsonl).
// Writers are serialized per category and sequence numbers are allocated
// under the category lock, so concurrent appends never lose an entry.
type FileLog struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	files map[model.Category]*categoryFile
}

// categoryFile is the per-category writer state.
type categoryFile struct {
	mu        sync.Mutex
	recovered bool
	seq       int64
}

// Compile-time check that FileLog implements Log.
var _ Log = (*FileLog)(nil)

// OpenFileLog creates dir if needed and returns a log rooted there.
func OpenFileLog(dir string, logger *slog.Logger) (*FileLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileLog{
		dir:    dir,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		files:  make(map[model.Category]*categoryFile),
	}, nil
}

func (l *FileLog) path(c model.Category) string {
	return filepath.Join(l.dir, string(c)+".jsonl")
}

func (l *FileLog) category(c model.Category) *categoryFile {
	l.mu.Lock()
	defer l.mu.Unlock()
	cf, ok := l.files[c]
	if !ok {
		cf = &categoryFile{}
		l.files[c] = cf
	}
	return cf
}

func (l *FileLog) Append(_ context.Context, category model.Category, payload any) (model.AuditEntry, error) {
	if err := CheckCategory(category); err != nil {
		return model.AuditEntry{}, err
	}
	data, err := EncodePayload(payload)
	if err != nil {
		return model.AuditEntry{}, err
	}

	cf := l.category(category)
	cf.mu.Lock()
	defer cf.mu.Unlock()

	if !cf.recovered {
		if err := l.recover(category, cf); err != nil {
			return model.AuditEntry{}, err
		}
	}

	e := model.AuditEntry{
		Seq:       cf.seq + 1,
		Category:  category,
		Timestamp: l.now(),
		Payload:   data,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("marshaling entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path(category), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("open %s history: %w", category, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return model.AuditEntry{}, fmt.Errorf("append %s: %w", category, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return model.AuditEntry{}, fmt.Errorf("sync %s: %w", category, err)
	}
	if err := f.Close(); err != nil {
		return model.AuditEntry{}, fmt.Errorf("close %s history: %w", category, err)
	}

	cf.seq = e.Seq
	return e, nil
}

// recover finds the last allocated sequence number and terminates a torn
// trailing line so the next append starts on a fresh line.
func (l *FileLog) recover(category model.Category, cf *categoryFile) error {
	entries, torn, err := l.read(category)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Seq > cf.seq {
			cf.seq = e.Seq
		}
	}
	if torn {
		f, err := os.OpenFile(l.path(category), os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return fmt.Errorf("open %s history: %w", category, err)
		}
		_, werr := f.Write([]byte{'\n'})
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("repair %s history: %w", category, werr)
		}
		if cerr != nil {
			return fmt.Errorf("repair %s history: %w", category, cerr)
		}
	}
	cf.recovered = true
	return nil
}

func (l *FileLog) Query(_ context.Context, category model.Category) ([]model.AuditEntry, error) {
	if err := CheckCategory(category); err != nil {
		return nil, err
	}
	cf := l.category(category)
	cf.mu.Lock()
	defer cf.mu.Unlock()

	entries, _, err := l.read(category)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// read loads a category's history. A missing file is an empty history and
// undecodable lines are skipped; torn reports a missing final newline.
func (l *FileLog) read(category model.Category) (entries []model.AuditEntry, torn bool, err error) {
	f, err := os.Open(l.path(category))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.AuditEntry{}, false, nil
		}
		return nil, false, fmt.Errorf("open %s history: %w", category, err)
	}
	defer f.Close()

	entries = []model.AuditEntry{}
	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, oversized, terminated, rerr := nextLine(r, maxLineBytes)
		if len(line) > 0 || oversized {
			lineNo++
			torn = !terminated
			line = bytes.TrimSpace(line)
			if oversized {
				l.logger.Warn("audit: skipping oversized record", "category", category, "line", lineNo)
			} else if len(line) > 0 {
				var e model.AuditEntry
				if err := json.Unmarshal(line, &e); err != nil || e.Seq <= 0 {
					l.logger.Warn("audit: skipping corrupt record", "category", category, "line", lineNo, "err", err)
				} else {
					entries = append(entries, e)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			l.logger.Warn("audit: history unreadable, treating remainder as empty", "category", category, "err", rerr)
			break
		}
	}
	return entries, torn, nil
}

// nextLine reads up to and including the next newline while buffering at
// most limit bytes. A longer line is consumed to its end but its bytes are
// dropped and oversized is set.
func nextLine(r *bufio.Reader, limit int) (line []byte, oversized, terminated bool, err error) {
	for {
		frag, ferr := r.ReadSlice('\n')
		if !oversized {
			if len(line)+len(frag) > limit {
				oversized = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		switch {
		case ferr == nil:
			return line, oversized, true, nil
		case errors.Is(ferr, bufio.ErrBufferFull):
		default:
			return line, oversized, false, ferr
		}
	}
}

// Close is a no-op; files are opened per append.
func (l *FileLog) Close() error { return nil }
