package upload

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuildPath(t *testing.T) {
	at := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	got := BuildPath("patient-photos", "temp-1700000000000", at, ".jpg")
	want := "patient-photos/2026/03/temp-1700000000000/temp-1700000000000_1772877600000.jpg"
	if got != want {
		t.Errorf("BuildPath = %q, want %q", got, want)
	}
}

func TestUploadID_RoundTrip(t *testing.T) {
	at := time.UnixMilli(1700000000123).UTC()
	id := NewUploadID(at)
	if !strings.HasPrefix(id, "upload_1700000000123_") {
		t.Fatalf("unexpected upload id %q", id)
	}
	got, ok := ParseUploadStart(id)
	if !ok || !got.Equal(at) {
		t.Errorf("ParseUploadStart(%q) = %v, %v; want %v", id, got, ok, at)
	}

	for _, bad := range []string{"", "upload_", "upload_abc_x", "upload_123_", "photo_123_abc", "upload_-5_x"} {
		if _, ok := ParseUploadStart(bad); ok {
			t.Errorf("ParseUploadStart(%q) should fail", bad)
		}
	}
}

func TestRepath(t *testing.T) {
	key := "patient-photos/2026/03/temp-1700000000000/temp-1700000000000_1.jpg"
	got := Repath(key, "temp-1700000000000", "p-42")
	if got != "patient-photos/2026/03/p-42/p-42_1.jpg" {
		t.Errorf("Repath = %q", got)
	}
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	tok, ok, err := g.Acquire(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if _, ok, _ := g.Acquire(ctx, "p1"); ok {
		t.Fatal("second acquire for the same key must fail")
	}
	if _, ok, _ := g.Acquire(ctx, "p2"); !ok {
		t.Fatal("other keys must not be blocked")
	}

	_ = g.Release(ctx, "p1", "someone-else")
	if _, ok, _ := g.Acquire(ctx, "p1"); ok {
		t.Fatal("release with a foreign token must not free the key")
	}

	_ = g.Release(ctx, "p1", tok)
	if _, ok, _ := g.Acquire(ctx, "p1"); !ok {
		t.Fatal("expected key to be free after release")
	}
}

func TestMemoryObjectStore(t *testing.T) {
	s := NewMemoryObjectStore("https://cdn.example.com/")
	ctx := context.Background()

	if err := s.Put(ctx, "a/b.png", "image/png", map[string]string{"k": "v"}, strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}
	url, err := s.URL(ctx, "a/b.png")
	if err != nil || url != "https://cdn.example.com/a/b.png" {
		t.Errorf("URL = %q, %v", url, err)
	}
	if err := s.Copy(ctx, "a/b.png", "c/d.png"); err != nil {
		t.Fatal(err)
	}
	if obj, ok := s.Get("c/d.png"); !ok || string(obj.Data) != "data" || obj.Metadata["k"] != "v" {
		t.Errorf("copied object = %+v, %v", obj, ok)
	}
	if err := s.Copy(ctx, "missing", "x"); err != ErrObjectNotFound {
		t.Errorf("copy of missing object = %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing object must succeed, got %v", err)
	}
}
