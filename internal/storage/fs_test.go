package storage

import (
	"io"
	"strings"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key, err := s.Put("submissions/abc/essay.txt", strings.NewReader("my essay"))
	if err != nil {
		t.Fatal(err)
	}
	if key != "submissions/abc/essay.txt" {
		t.Fatalf("key = %q", key)
	}
	rc, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "my essay" {
		t.Fatalf("body = %q", b)
	}
}

func TestEscapingKeysRejected(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../outside", "submissions/../../etc/shadow", "/etc/passwd"} {
		if _, err := s.Put(key, strings.NewReader("x")); err == nil {
			t.Errorf("Put accepted key %q", key)
		}
		if _, err := s.Get(key); err == nil {
			t.Errorf("Get accepted key %q", key)
		}
	}
}
