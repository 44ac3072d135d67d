package kvstore

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "musicinfo.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Set("k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, ok, err := s.Get("k")
	if err != nil || !ok || got != "v2" {
		t.Errorf("Get(k) = %q ok=%v err=%v, want v2", got, ok, err)
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)

	s.Set("k", "v")
	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key still present after Remove")
	}
	if err := s.Remove("k"); err != nil {
		t.Errorf("removing an absent key should not fail: %v", err)
	}
}

func TestKeysAndRemovePrefix(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"ns_v2_b", "ns_v2_a", "ns_v1_a", "other", "ns_v2%_literal"} {
		if err := s.Set(k, "x"); err != nil {
			t.Fatalf("Set(%q) failed: %v", k, err)
		}
	}

	keys, err := s.Keys("ns_v2_")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if want := []string{"ns_v2_a", "ns_v2_b"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}

	n, err := s.RemovePrefix("ns_v2_")
	if err != nil {
		t.Fatalf("RemovePrefix failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RemovePrefix removed %d, want 2", n)
	}

	for _, k := range []string{"ns_v1_a", "other", "ns_v2%_literal"} {
		if _, ok, _ := s.Get(k); !ok {
			t.Errorf("key %q outside the prefix was removed", k)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicinfo.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Set("k", "v")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if got, ok, _ := s.Get("k"); !ok || got != "v" {
		t.Errorf("Get after reopen = %q ok=%v", got, ok)
	}
}

func TestOpenLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicinfo.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := Open(path); !errors.Is(err, ErrLocked) {
		t.Errorf("second Open error = %v, want ErrLocked", err)
	}
}
