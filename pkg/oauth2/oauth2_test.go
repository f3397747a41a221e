package oauth2

import (
	"encoding/json"
	"testing"
)

func TestGenerateUIDLength(t *testing.T) {
	// base64url without padding: 16 bytes encode to 22 chars, 32 to 43
	if got := len(GenerateUID(16)); got != 22 {
		t.Fatalf("expected 22 characters for 16 bytes, got %d", got)
	}
	if got := len(GenerateUID(32)); got != 43 {
		t.Fatalf("expected 43 characters for 32 bytes, got %d", got)
	}
}

func TestGenerateUIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		uid := GenerateUID(16)
		if seen[uid] {
			t.Fatalf("duplicate uid after %d draws: %s", i, uid)
		}
		seen[uid] = true
	}
}

func TestErrorSerialization(t *testing.T) {
	oauthErr := &Error{
		HttpStatus:  400,
		Code:        "invalid_request",
		Description: "missing parameter",
	}

	raw, err := json.Marshal(oauthErr)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["error"] != "invalid_request" {
		t.Fatalf("expected error field, got %v", decoded)
	}
	if _, ok := decoded["HttpStatus"]; ok {
		t.Fatal("HttpStatus must not serialize")
	}

	if oauthErr.Error() != "invalid_request: missing parameter" {
		t.Fatalf("unexpected error string: %s", oauthErr.Error())
	}
}
