package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != FarmPrefix {
		t.Fatalf("unexpected prefix %q", addr.Prefix())
	}
	raw, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if !bytes.Equal(raw[:], addr.Bytes()) {
		t.Fatalf("round trip mismatch")
	}
	if FormatAddress(raw) != addr.String() {
		t.Fatalf("format mismatch: %s vs %s", FormatAddress(raw), addr.String())
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	other := NewAddress("other", bytes.Repeat([]byte{0x01}, 20))
	if _, err := ParseAddress(other.String()); err == nil {
		t.Fatalf("expected prefix error")
	}
	if _, err := ParseAddress("  "); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := ParseAddress("farm1notbech32"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPrivateKeyFromBytes(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("restored key derives a different address")
	}
	if len(key.Hex()) != 64 {
		t.Fatalf("unexpected hex length %d", len(key.Hex()))
	}
}
