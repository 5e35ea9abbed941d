package ipfs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

// fakeKubo emulates "ipfs block put|get|stat" over files in $IPFS_PATH. The
// CID a put reports is read from $IPFS_PATH/next, which tests write first.
const fakeKubo = `#!/bin/sh
repo="$IPFS_PATH"
case "$1 $2" in
"block put")
	id=$(cat "$repo/next")
	cat > "$repo/$id"
	echo "$id"
	;;
"block get")
	cat "$repo/$3" 2>/dev/null || { echo "Error: block not found" >&2; exit 1; }
	;;
"block stat")
	test -f "$repo/$4" || { echo "Error: block not found" >&2; exit 1; }
	;;
*)
	echo "unsupported" >&2; exit 2
	;;
esac
`

func newFake(t *testing.T) (*CAS, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ipfs binary is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ipfs")
	if err := os.WriteFile(bin, []byte(fakeKubo), 0o755); err != nil {
		t.Fatal(err)
	}
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}
	return New(Options{Bin: bin, RepoPath: repo}), repo
}

func setNext(t *testing.T, repo string, b []byte) {
	t.Helper()
	id, err := digest.CIDOf(b)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "next"), []byte(id.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIPFS_RoundTrip(t *testing.T) {
	cas, repo := newFake(t)
	data := []byte(`{"classes":6}`)
	setNext(t, repo, data)

	id, err := cas.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !cas.Has(id) {
		t.Fatalf("Has = false after Put")
	}
	got, err := cas.Get(id)
	if err != nil || string(got) != string(data) {
		t.Fatalf("Get = %q, %v", got, err)
	}

	missing, _ := digest.CIDOf([]byte("missing"))
	if _, err := cas.Get(missing); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if cas.Has(missing) {
		t.Fatalf("Has = true for missing block")
	}
}

func TestIPFS_DetectsMismatch(t *testing.T) {
	cas, repo := newFake(t)
	setNext(t, repo, []byte("something else"))
	if _, err := cas.Put([]byte("data")); err != storage.ErrCIDMismatch {
		t.Fatalf("put: expected ErrCIDMismatch, got %v", err)
	}

	// A block stored under the wrong name must not be returned.
	id, _ := digest.CIDOf([]byte("expected"))
	if err := os.WriteFile(filepath.Join(repo, id.String()), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cas.Get(id); err != storage.ErrCIDMismatch {
		t.Fatalf("get: expected ErrCIDMismatch, got %v", err)
	}
}

func TestIPFS_Registry(t *testing.T) {
	cas, _, err := casregistry.Open("ipfs", casregistry.UsageCLI, casregistry.Options{OptBin: "/nonexistent/ipfs"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := digest.CIDOf([]byte("x"))
	if _, err := cas.Get(id); err == nil {
		t.Fatalf("expected exec error from missing binary")
	}
}
