package digest

import (
	"strings"
	"testing"

	"xdao.co/collapse/canon"
)

func TestSum_KnownVector(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")).Hex(); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestSumValue_MatchesEncode(t *testing.T) {
	v := canon.Array(canon.String("x"), canon.Int64(-1))
	if SumValue(v) != Sum([]byte(`["x",-1]`)) {
		t.Fatalf("SumValue must hash canonical bytes")
	}
}

func TestHex_LowercaseNoPrefix(t *testing.T) {
	h := Sum(nil).Hex()
	if len(h) != 64 {
		t.Fatalf("len=%d", len(h))
	}
	if h != strings.ToLower(h) || strings.HasPrefix(h, "0x") {
		t.Fatalf("unexpected hex form: %s", h)
	}
}

func TestParseHex_RoundTrip(t *testing.T) {
	d := Sum([]byte("round trip"))
	got, err := ParseHex(d.Hex())
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if got != d {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParseHex("deadbeef"); err == nil {
		t.Fatalf("expected short input to fail")
	}
	if _, err := ParseHex(strings.Repeat("zz", Size)); err == nil {
		t.Fatalf("expected non-hex input to fail")
	}
}

func TestCID_MatchesCIDOfBytes(t *testing.T) {
	data := []byte(`{"a":1}`)
	want, err := CIDOf(data)
	if err != nil {
		t.Fatalf("CIDOf: %v", err)
	}
	d := Sum(data)
	if got := d.CID(); !got.Equals(want) {
		t.Fatalf("CID mismatch: got %s want %s", got, want)
	}
	back, err := FromCID(want)
	if err != nil {
		t.Fatalf("FromCID: %v", err)
	}
	if back != d {
		t.Fatalf("FromCID did not recover digest")
	}
}
