package domain

import (
	"encoding/json"
	"testing"
)

func TestAccountID_RoundTrip(t *testing.T) {
	var id AccountID
	for i := range id {
		id[i] = byte(i)
	}

	parsed, err := ParseAccountID(id.String())
	if err != nil {
		t.Fatalf("ParseAccountID failed: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: %s != %s", parsed, id)
	}
}

func TestParseAccountID_RejectsWrongLength(t *testing.T) {
	// "abc" decodes to fewer than 32 bytes.
	if _, err := ParseAccountID("abc"); err == nil {
		t.Error("expected error for short input")
	}

	if _, err := ParseAccountID("not!base58"); err == nil {
		t.Error("expected error for invalid alphabet")
	}
}

func TestAccountID_IsZero(t *testing.T) {
	var zero AccountID
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}

	nonZero := AccountID{0x01}
	if nonZero.IsZero() {
		t.Error("non-zero value should not report IsZero")
	}
}

func TestAccountID_IsOnCurve(t *testing.T) {
	// Canonical encoding of the ed25519 generator point.
	generator := AccountID{0x58}
	for i := 1; i < AccountIDLen; i++ {
		generator[i] = 0x66
	}

	if !generator.IsOnCurve() {
		t.Error("generator point should be on curve")
	}
}

func TestAccountID_JSON(t *testing.T) {
	id := AccountID{0x01, 0x02, 0x03}

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded AccountID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != id {
		t.Errorf("JSON round trip mismatch")
	}
}

func TestEvent_Touches(t *testing.T) {
	from, to, other := AccountID{0x01}, AccountID{0x02}, AccountID{0x03}

	e := NewTransferEvent(from, to, 10, 1000)
	if !e.Touches(from) || !e.Touches(to) {
		t.Error("transfer should touch both endpoints")
	}
	if e.Touches(other) {
		t.Error("transfer should not touch uninvolved account")
	}

	a := NewApprovalEvent(from, to, 10, 1000)
	if !a.Touches(from) || !a.Touches(to) {
		t.Error("approval should touch owner and spender")
	}
}
