package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backends returns a fresh instance of every local Log implementation.
func backends(t *testing.T) map[string]Log {
	t.Helper()
	fl, err := OpenFileLog(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("OpenFileLog: %v", err)
	}
	return map[string]Log{
		"memory": NewMemoryLog(),
		"file":   fl,
	}
}

func TestLog_AppendQueryOrder(t *testing.T) {
	ctx := context.Background()
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer l.Close()
			const n = 5
			for i := 0; i < n; i++ {
				if _, err := l.Append(ctx, model.CategoryMatched, map[string]int{"i": i}); err != nil {
					t.Fatalf("Append %d: %v", i, err)
				}
			}
			got, err := l.Query(ctx, model.CategoryMatched)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != n {
				t.Fatalf("len = %d, want %d", len(got), n)
			}
			for i, e := range got {
				var p map[string]int
				if err := json.Unmarshal(e.Payload, &p); err != nil {
					t.Fatalf("payload %d: %v", i, err)
				}
				if p["i"] != i {
					t.Errorf("entry %d payload = %v", i, p)
				}
				if e.Category != model.CategoryMatched {
					t.Errorf("entry %d category = %q", i, e.Category)
				}
				if i > 0 && e.Seq <= got[i-1].Seq {
					t.Errorf("seq not increasing: %d after %d", e.Seq, got[i-1].Seq)
				}
				if e.Timestamp.IsZero() {
					t.Errorf("entry %d has no timestamp", i)
				}
			}
		})
	}
}

func TestLog_CategoriesIndependent(t *testing.T) {
	ctx := context.Background()
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := l.Append(ctx, model.CategoryIncoming, "a"); err != nil {
				t.Fatal(err)
			}
			if _, err := l.Append(ctx, model.CategoryMismatch, "b"); err != nil {
				t.Fatal(err)
			}
			in, _ := l.Query(ctx, model.CategoryIncoming)
			mm, _ := l.Query(ctx, model.CategoryMismatch)
			inv, err := l.Query(ctx, model.CategoryInvalid)
			if err != nil {
				t.Fatalf("Query empty category: %v", err)
			}
			if len(in) != 1 || len(mm) != 1 {
				t.Fatalf("incoming=%d mismatch=%d, want 1 each", len(in), len(mm))
			}
			if inv == nil || len(inv) != 0 {
				t.Errorf("empty category should be an empty slice, got %v", inv)
			}
		})
	}
}

func TestLog_SeqIsPositionInCategory(t *testing.T) {
	ctx := context.Background()
	order := []model.Category{
		model.CategoryIncoming,
		model.CategoryMatched,
		model.CategoryIncoming,
		model.CategoryError,
		model.CategoryIncoming,
		model.CategoryMatched,
	}
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := map[model.Category]int64{}
			for i, c := range order {
				want[c]++
				e, err := l.Append(ctx, c, i)
				if err != nil {
					t.Fatalf("Append %d: %v", i, err)
				}
				if e.Seq != want[c] {
					t.Errorf("append %d to %s: seq = %d, want %d", i, c, e.Seq, want[c])
				}
			}
			for c, n := range want {
				got, err := l.Query(ctx, c)
				if err != nil {
					t.Fatalf("Query %s: %v", c, err)
				}
				if int64(len(got)) != n {
					t.Fatalf("%s: len = %d, want %d", c, len(got), n)
				}
				for i, e := range got {
					if e.Seq != int64(i+1) {
						t.Errorf("%s entry %d: seq = %d, want %d", c, i, e.Seq, i+1)
					}
				}
			}
		})
	}
}

func TestLog_UnknownCategory(t *testing.T) {
	ctx := context.Background()
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := l.Append(ctx, model.Category("bogus"), "x"); !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("Append err = %v, want ErrUnknownCategory", err)
			}
			if _, err := l.Query(ctx, model.Category("../etc")); !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("Query err = %v, want ErrUnknownCategory", err)
			}
		})
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const n = 50
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := l.Append(ctx, model.CategoryIncoming, i); err != nil {
						t.Errorf("Append: %v", err)
					}
				}(i)
			}
			wg.Wait()

			got, err := l.Query(ctx, model.CategoryIncoming)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != n {
				t.Fatalf("len = %d, want %d", len(got), n)
			}
			seen := make(map[int64]bool)
			for i, e := range got {
				if seen[e.Seq] {
					t.Errorf("duplicate seq %d", e.Seq)
				}
				seen[e.Seq] = true
				if e.Seq != int64(i+1) {
					t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
				}
			}
		})
	}
}

func TestLog_RawPayloadPassthrough(t *testing.T) {
	l := NewMemoryLog()
	raw := json.RawMessage(`{"permitNumber":"PMA1"}`)
	e, err := l.Append(context.Background(), model.CategoryForwarded, raw)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if string(e.Payload) != string(raw) {
		t.Errorf("payload = %s, want %s", e.Payload, raw)
	}
	if _, err := l.Append(context.Background(), model.CategoryForwarded, json.RawMessage(`{nope`)); err == nil {
		t.Error("invalid raw JSON should be rejected")
	}
}

func TestFileLog_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	l1, err := OpenFileLog(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l1.Append(ctx, model.CategoryMatched, i); err != nil {
			t.Fatal(err)
		}
	}

	l2, err := OpenFileLog(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	e, err := l2.Append(ctx, model.CategoryMatched, 3)
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 4 {
		t.Errorf("seq after reopen = %d, want 4", e.Seq)
	}
	got, _ := l2.Query(ctx, model.CategoryMatched)
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestFileLog_SkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := `{"seq":1,"category":"matched","timestamp":"2026-01-01T00:00:00Z","payload":"a"}
this is not json
{"seq":2,"category":"matched","timestamp":"2026-01-01T00:00:01Z","payload":"b"}

{"seq":3,"category":"matched","timestamp":"2026-01-01T00:00:02Z","payload":"c` // torn final write
	if err := os.WriteFile(filepath.Join(dir, "matched.jsonl"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := OpenFileLog(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.Query(ctx, model.CategoryMatched)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("got %+v, want seqs 1 and 2", got)
	}

	e, err := l.Append(ctx, model.CategoryMatched, "d")
	if err != nil {
		t.Fatalf("Append after torn line: %v", err)
	}
	if e.Seq != 3 {
		t.Errorf("seq = %d, want 3", e.Seq)
	}
	got, _ = l.Query(ctx, model.CategoryMatched)
	if len(got) != 3 || string(got[2].Payload) != `"d"` {
		t.Errorf("appended record not readable after repair: %+v", got)
	}
}

func TestFileLog_SkipsOversizedLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	huge := `{"seq":2,"category":"matched","timestamp":"2026-01-01T00:00:01Z","payload":"` +
		strings.Repeat("x", maxLineBytes) + `"}`
	content := `{"seq":1,"category":"matched","timestamp":"2026-01-01T00:00:00Z","payload":"a"}` + "\n" +
		huge + "\n" +
		`{"seq":3,"category":"matched","timestamp":"2026-01-01T00:00:02Z","payload":"c"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "matched.jsonl"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := OpenFileLog(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.Query(ctx, model.CategoryMatched)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 3 {
		t.Fatalf("got %d entries, want seqs 1 and 3 around the oversized record", len(got))
	}

	e, err := l.Append(ctx, model.CategoryMatched, "d")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.Seq != 4 {
		t.Errorf("seq = %d, want 4", e.Seq)
	}
}

func TestNextLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("short\n"+strings.Repeat("y", 40)+"\nnext\ntail"), 16)
	for _, want := range []struct {
		line       string
		oversized  bool
		terminated bool
	}{
		{"short\n", false, true},
		{"", true, true},
		{"next\n", false, true},
		{"tail", false, false},
	} {
		line, oversized, terminated, _ := nextLine(r, 20)
		if string(line) != want.line || oversized != want.oversized || terminated != want.terminated {
			t.Fatalf("nextLine = (%q, %v, %v), want (%q, %v, %v)",
				line, oversized, terminated, want.line, want.oversized, want.terminated)
		}
	}
}

func TestFileLog_MissingFileIsEmpty(t *testing.T) {
	l, err := OpenFileLog(filepath.Join(t.TempDir(), "nested", "logs"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.Query(context.Background(), model.CategoryForwardError)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
