package spine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"xdao.co/collapse/digest"
)

// Snapshot keys.
const (
	KeyAsc7Hash        = "asc7_hash"
	KeyConfusablesHash = "confusables_hash"
	KeyDomainDigest    = "domain_digest"
	KeyTestsHash       = "tests_hash"
	KeySembitHash      = "sembit_hash"
	KeyChainHash       = "chain_hash"
)

// SnapshotKeys lists the keys every snapshot must carry, in verification
// order.
func SnapshotKeys() []string {
	return []string{KeyConfusablesHash, KeyAsc7Hash, KeyDomainDigest, KeyTestsHash, KeySembitHash, KeyChainHash}
}

// DefaultSnapshotPath is where freeze mode writes by default.
const DefaultSnapshotPath = "gates/expected.json"

// Snapshot maps digest names to lowercase hex.
type Snapshot map[string]string

// Keys returns the snapshot's keys sorted by bytes.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegressionMismatchError reports a snapshot key whose frozen value differs
// from a fresh computation, a key absent from the snapshot, or a missing
// snapshot file (Key empty, Missing set).
type RegressionMismatchError struct {
	Path     string
	Key      string
	Expected string
	Got      string
	Missing  bool
	Cause    error
}

func (e *RegressionMismatchError) Error() string {
	switch {
	case e.Missing && e.Key == "":
		return fmt.Sprintf("spine: snapshot %s missing; generate it with freeze", e.Path)
	case e.Missing:
		return fmt.Sprintf("spine: snapshot missing key %s", e.Key)
	default:
		return fmt.Sprintf("spine: regression mismatch for key=%s: expected %s got %s", e.Key, e.Expected, e.Got)
	}
}

func (e *RegressionMismatchError) Unwrap() error { return e.Cause }

// WriteSnapshot writes s as indented JSON with sorted keys and a trailing
// newline, creating parent directories.
func WriteSnapshot(path string, s Snapshot) error {
	for _, k := range s.Keys() {
		if _, err := digest.ParseHex(s[k]); err != nil {
			return fmt.Errorf("spine: snapshot key %s: %w", k, err)
		}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("spine: encode snapshot: %w", err)
	}
	b = append(b, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("spine: create snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("spine: write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot. A missing file is a *RegressionMismatchError.
func ReadSnapshot(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &RegressionMismatchError{Path: path, Missing: true, Cause: err}
		}
		return nil, fmt.Errorf("spine: read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("spine: decode snapshot %s: %w", path, err)
	}
	return s, nil
}

// VerifySnapshot compares every required key of got against expected and
// returns the first mismatch.
func VerifySnapshot(expected, got Snapshot) error {
	for _, k := range SnapshotKeys() {
		e, ok := expected[k]
		if !ok {
			return &RegressionMismatchError{Key: k, Got: got[k], Missing: true}
		}
		if g := got[k]; g != e {
			return &RegressionMismatchError{Key: k, Expected: e, Got: g}
		}
	}
	return nil
}

// Verify reads the snapshot at path and checks r against it.
func Verify(path string, r *Result) error {
	expected, err := ReadSnapshot(path)
	if err != nil {
		return err
	}
	return VerifySnapshot(expected, r.Digests())
}
