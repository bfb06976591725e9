package security

import (
	"testing"
	"time"
)

var testOpts = DefaultOptions([]byte("unit-test-secret"))

func TestGenerateVerifyRoundTrip(t *testing.T) {
	token, exp, err := Generate(testOpts, "42", "alice")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", exp)
	}
	id, err := Verify(testOpts, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "42" || id.Username != "alice" {
		t.Fatalf("bad identity: %+v", id)
	}
}

func TestVerifyExpired(t *testing.T) {
	opts := testOpts
	opts.TTL = -time.Minute
	token, _, err := Generate(opts, "42", "alice")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify(testOpts, token); err == nil {
		t.Fatal("expected expired-token error")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(testOpts, "42", "alice")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	other := DefaultOptions([]byte("different-secret"))
	if _, err := Verify(other, token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify(testOpts, "not.a.jwt"); err == nil {
		t.Fatal("expected parse error")
	}
}
