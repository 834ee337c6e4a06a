package logging

import "testing"

func TestMaskFieldRedactsUnknownKeys(t *testing.T) {
	attr := MaskField("token", "secret-value")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected token value to be redacted, got %q", attr.Value.String())
	}
	if attr.Key != "token" {
		t.Fatalf("key casing must be preserved, got %q", attr.Key)
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("asset", "USD")
	if attr.Value.String() != "USD" {
		t.Fatalf("allowlisted key must pass through, got %q", attr.Value.String())
	}
}

func TestMaskFieldKeepsEmptyValues(t *testing.T) {
	attr := MaskField("token", "")
	if attr.Value.String() != "" {
		t.Fatalf("empty values must pass through, got %q", attr.Value.String())
	}
}

func TestRedactionAllowlistIsSorted(t *testing.T) {
	keys := RedactionAllowlist()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("allowlist not sorted at %d: %v", i, keys)
		}
	}
	if !IsAllowlisted("Error") {
		t.Fatalf("allowlist lookup must be case-insensitive")
	}
	if IsAllowlisted("password") {
		t.Fatalf("password must not be allowlisted")
	}
}
