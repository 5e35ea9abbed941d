package casregistry

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/storage"
)

type stubCAS struct{}

func (stubCAS) Put([]byte) (cid.Cid, error) { return cid.Undef, nil }
func (stubCAS) Get(cid.Cid) ([]byte, error) { return nil, storage.ErrNotFound }
func (stubCAS) Has(cid.Cid) bool            { return false }

func TestRegisterAndOpen(t *testing.T) {
	var got Options
	MustRegister(Backend{
		Name:  "stub-test",
		Usage: UsageCLI,
		Keys:  []string{"dir"},
		Open: func(opts Options) (storage.CAS, func() error, error) {
			got = opts
			return stubCAS{}, nil, nil
		},
	})

	if _, _, err := Open("stub-test", UsageCLI, Options{"dir": "/tmp/x"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got["dir"] != "/tmp/x" {
		t.Fatalf("options not passed through: %v", got)
	}
	if _, _, err := Open("stub-test", UsageCLI, nil); err != nil || got == nil {
		t.Fatalf("nil options should open with an empty map: %v", err)
	}
	if _, _, err := Open("stub-test", UsageDaemon, nil); err == nil {
		t.Fatalf("usage mismatch should fail")
	}
	if _, _, err := Open("stub-test", UsageCLI, Options{"bogus": "1"}); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("unknown option should be named: %v", err)
	}
	if _, _, err := Open("nope", UsageCLI, nil); err == nil {
		t.Fatalf("unknown backend should fail")
	}

	found := false
	for _, n := range Names(UsageCLI) {
		if n == "stub-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Names missing registered backend")
	}
	if err := Register(Backend{Name: "stub-test", Usage: UsageCLI, Open: func(Options) (storage.CAS, func() error, error) { return nil, nil, nil }}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := Register(Backend{Name: "x"}); err == nil {
		t.Fatalf("missing Open should fail")
	}
}
