package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunStamp(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC) }
	if got := RunStamp(clock); got != "20240309_070501" {
		t.Fatalf("RunStamp = %s", got)
	}
	if len(RunStamp(nil)) != len("20060102_150405") {
		t.Fatalf("default clock stamp has wrong shape")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview([]byte{0x00, 0xab}); got != "len=2 hex64=00ab" {
		t.Fatalf("Preview = %s", got)
	}
	long := bytes.Repeat([]byte{0xff}, 65)
	got := Preview(long)
	if !strings.HasPrefix(got, "len=65 hex64=") || !strings.HasSuffix(got, "...") {
		t.Fatalf("Preview = %s", got)
	}
	if n := strings.Count(got, "ff"); n != 64 {
		t.Fatalf("preview should show 64 bytes, shows %d", n)
	}
}

func TestWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter("asc7", "out/x.log", &buf)
	w.Banner("title")
	w.Section("SECTION")
	w.KV("k", "v")
	w.BytesPreview("bytes", []byte("ab"))

	want := strings.Join([]string{
		"",
		bannerRule,
		"TRACE: asc7",
		"TITLE: title",
		"FILE: out/x.log",
		bannerRule,
		"",
		"",
		sectionRule,
		"SECTION",
		sectionRule,
		"k: v",
		"bytes: len=2 hex64=6162",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
	if w.Err() != nil {
		t.Fatalf("unexpected error %v", w.Err())
	}
}

func TestOpenFile_TeesAndNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var stdout bytes.Buffer
	f, err := OpenFile(dir, "20240101_000000", "sembits", &stdout)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.KV("classes", "6")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if filepath.Base(f.Path()) != "run_20240101_000000_sembits.log" {
		t.Fatalf("path = %s", f.Path())
	}
	b, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "classes: 6\n" || stdout.String() != string(b) {
		t.Fatalf("file=%q stdout=%q", b, stdout.String())
	}

	if _, err := OpenFile(dir, "s", " "); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	z := NewZap(zap.New(core), "structural")
	z.Section("QE DOMAIN")
	z.KV("size", "10")
	z.BytesPreview("canonical_bytes", []byte{1})

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	kv := entries[1].ContextMap()
	if kv["trace"] != "structural" || kv["key"] != "size" || kv["value"] != "10" {
		t.Fatalf("kv entry = %v", kv)
	}
	if entries[2].ContextMap()["len"] != int64(1) {
		t.Fatalf("bytes entry = %v", entries[2].ContextMap())
	}
}

func TestTeeAndNop(t *testing.T) {
	var a, b bytes.Buffer
	s := Tee{NewWriter("a", "", &a), Nop{}, NewWriter("b", "", &b)}
	s.Line("x")
	if a.String() != "x\n" || b.String() != "x\n" {
		t.Fatalf("tee did not fan out: %q %q", a.String(), b.String())
	}
}
