package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type harness struct {
	t    *testing.T
	dir  string
	conf string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "chunks")
	conf := filepath.Join(tmp, "segreader.yaml")
	body := "dir: " + dir + "\nlog:\n  level: error\n"
	if err := os.WriteFile(conf, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &harness{t: t, dir: dir, conf: conf}
}

func (h *harness) run(stdin string, args ...string) string {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand("test")
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", h.conf}, args...))
	if err := root.Execute(); err != nil {
		h.t.Fatalf("segreader %s: %v (stderr: %s)", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func (h *harness) write(source, lines string, extra ...string) string {
	h.t.Helper()
	args := append([]string{"write", "--source", source}, extra...)
	return strings.TrimSpace(h.run(lines, args...))
}

func TestWriteListCat(t *testing.T) {
	h := newHarness(t)
	web := h.write("web", "GET /\nGET /login\nPOST /login\n")
	db := h.write("db", "select 1\n", "--compression", "zstd")

	list := h.run("", "list")
	for _, want := range []string{web, db, "2 chunks", "true"} {
		if !strings.Contains(list, want) {
			t.Fatalf("list output missing %q:\n%s", want, list)
		}
	}

	all := h.run("", "cat")
	if got := strings.Count(all, "\n"); got != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", got, all)
	}
	if strings.Index(all, "GET /login") > strings.Index(all, "select 1") {
		t.Fatalf("expected oldest chunk first:\n%s", all)
	}

	grep := h.run("", "cat", web, "--grep", "login")
	if got := strings.Count(grep, "\n"); got != 2 {
		t.Fatalf("expected 2 matching lines, got %d:\n%s", got, grep)
	}

	rev := strings.Split(strings.TrimSpace(h.run("", "cat", web, "--reverse")), "\n")
	if len(rev) != 3 || !strings.HasSuffix(rev[0], "POST /login") {
		t.Fatalf("expected newest first, got %q", rev)
	}

	none := h.run("", "cat", "--source", "nope")
	if none != "" {
		t.Fatalf("expected no output, got %q", none)
	}
}

func TestSources(t *testing.T) {
	h := newHarness(t)
	id := h.write("web", "a\nb\n")
	h.write("db", "c\n")

	out := h.run("", "sources", "--stats", id, id)
	if !strings.Contains(out, "web") || !strings.Contains(out, "4") {
		t.Fatalf("expected web counted twice across repeated ids:\n%s", out)
	}
	if got := statValue(out, "segreader_cache_hits_total"); got != "1" {
		t.Fatalf("expected 1 cache hit for the repeated chunk, got %q:\n%s", got, out)
	}
	if got := statValue(out, "segreader_cache_misses_total"); got != "1" {
		t.Fatalf("expected 1 cache miss, got %q:\n%s", got, out)
	}
	if strings.Contains(out, "db") {
		t.Fatalf("db chunk was not requested:\n%s", out)
	}
}

// statValue returns the value cell of the --stats row for metric.
func statValue(out, metric string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, metric) {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == '│' || r == ' ' })
		if len(fields) == 2 {
			return fields[1]
		}
	}
	return ""
}

func TestCompress(t *testing.T) {
	h := newHarness(t)
	id := h.write("web", strings.Repeat("the same line over and over\n", 200))

	out := h.run("", "compress")
	if !strings.HasPrefix(out, id) {
		t.Fatalf("expected %s to be compressed, got %q", id, out)
	}
	if lines := h.run("", "cat", id); strings.Count(lines, "\n") != 200 {
		t.Fatalf("expected 200 lines after compression")
	}
}

func TestPrune(t *testing.T) {
	h := newHarness(t)
	old := h.write("web", "a\n")
	keep := h.write("web", "b\n")

	out := h.run("", "prune", "--max-chunks", "1")
	if !strings.HasPrefix(out, old) {
		t.Fatalf("expected %s pruned, got %q", old, out)
	}
	list := h.run("", "list")
	if strings.Contains(list, old) || !strings.Contains(list, keep) {
		t.Fatalf("unexpected chunks after prune:\n%s", list)
	}
	if _, err := os.Stat(filepath.Join(h.dir, old)); !os.IsNotExist(err) {
		t.Fatalf("expected chunk dir removed, stat err %v", err)
	}
}

func TestWriteRotates(t *testing.T) {
	h := newHarness(t)
	ids := strings.Fields(h.write("web", "1\n2\n3\n4\n5\n", "--max-records", "2"))
	if len(ids) != 3 {
		t.Fatalf("expected 3 chunks, got %v", ids)
	}
	if out := h.run("", "cat"); out == "" || strings.Count(out, "\n") != 5 {
		t.Fatalf("expected 5 lines across chunks:\n%s", out)
	}
}

func TestWriteFromFile(t *testing.T) {
	h := newHarness(t)
	input := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(input, []byte("one\ntwo\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	h.run("", "write", input)

	out := h.run("", "cat", "--source", "app.log")
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected source to default to the file name:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	if out := h.run("", "version"); out != "test\n" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestBadChunkID(t *testing.T) {
	h := newHarness(t)
	h.write("web", "x\n")

	root := NewRootCommand("test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", h.conf, "cat", "not-a-uuid"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a malformed chunk id")
	}
}
