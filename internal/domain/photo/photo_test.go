package photo

import (
	"testing"
	"time"
)

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		in       string
		isID     bool
		embedded string
	}{
		{"temp-1700000000000", true, "temp-1700000000000"},
		{"patient-photos/2026/01/temp-1700000000000/temp-1700000000000_1.jpg", false, "temp-1700000000000"},
		{"temp-", false, ""},
		{"8b1f7c9e-0d5a-4e0a-9f57-3c1b2e6d4a10", false, ""},
	}
	for _, tt := range tests {
		if got := IsPlaceholderID(tt.in); got != tt.isID {
			t.Errorf("IsPlaceholderID(%q) = %v, want %v", tt.in, got, tt.isID)
		}
		if got := FindPlaceholder(tt.in); got != tt.embedded {
			t.Errorf("FindPlaceholder(%q) = %q, want %q", tt.in, got, tt.embedded)
		}
	}
}

func TestUpdateCommand_MergesMetadata(t *testing.T) {
	u := (&TrackCommand{PatientID: "temp-1", Metadata: map[string]any{"a": 1}}).ToPhotoUpload(time.Now())
	if u.Status != StatusUploaded {
		t.Fatalf("expected new upload to be %s, got %s", StatusUploaded, u.Status)
	}

	status := StatusConfirmed
	(&UpdateCommand{Status: &status, Metadata: map[string]any{"b": 2}}).Apply(u)

	if u.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", u.Status)
	}
	if u.Metadata["a"] != 1 || u.Metadata["b"] != 2 {
		t.Errorf("expected merged metadata, got %v", u.Metadata)
	}
}
