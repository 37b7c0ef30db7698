package rpcserver

import (
	"encoding/json"
	"strings"
	"testing"
)

func rawStrings(ss ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ss))
	for i, s := range ss {
		b, _ := json.Marshal(s)
		out[i] = b
	}
	return out
}

func TestValidateIDs_RejectsShortHex(t *testing.T) {
	_, err := validateIDs("skill_ids", rawStrings("aa", strings.Repeat("b", 64)))
	if err == nil {
		t.Fatal("expected INVALID_PARAMS for a 2-char id")
	}
	if err.Code != "INVALID_PARAMS" {
		t.Errorf("Code = %q, want INVALID_PARAMS", err.Code)
	}
}

func TestValidateIDs_Rejects63CharID(t *testing.T) {
	_, err := validateIDs("skill_ids", rawStrings(strings.Repeat("a", 63)))
	if err == nil {
		t.Fatal("expected INVALID_PARAMS for a 63-char id")
	}
}

func TestValidateIDs_RejectsNonStringElement(t *testing.T) {
	_, err := validateIDs("skill_ids", []json.RawMessage{json.RawMessage("42")})
	if err == nil {
		t.Fatal("expected INVALID_PARAMS for a non-string element")
	}
}

func TestValidateIDs_DuplicateSucceedsOnce(t *testing.T) {
	id := strings.Repeat("a", 64)
	ids, err := validateIDs("skill_ids", rawStrings(id, id))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("ids = %v, want a deduplicated single entry", ids)
	}
}

func TestValidateIDs_RejectsUppercaseHex(t *testing.T) {
	_, err := validateIDs("skill_ids", rawStrings(strings.Repeat("A", 64)))
	if err == nil {
		t.Fatal("expected INVALID_PARAMS for uppercase hex (must be lowercase)")
	}
}
