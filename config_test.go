package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNamesConfigLoadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(fn, []byte("\"01020304\": \"Hot Water\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &namesConfig{}
	if err := c.load(fn); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := c.nameFor(0x01020304); got != "Hot Water" {
		t.Errorf("nameFor(0x01020304) = %q, want %q", got, "Hot Water")
	}
	if got := c.nameFor(0xFFFFFFFF); got != "" {
		t.Errorf("nameFor(unknown) = %q, want empty", got)
	}

	c.mu.Lock()
	c.names["11223344"] = "Garage"
	c.mu.Unlock()

	if err := c.write(fn); err != nil {
		t.Fatalf("write: %v", err)
	}

	c2 := &namesConfig{}
	if err := c2.load(fn); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := c2.nameFor(0x11223344); got != "Garage" {
		t.Errorf("after reload, nameFor(0x11223344) = %q, want %q", got, "Garage")
	}
	if got := c2.nameFor(0x01020304); got != "Hot Water" {
		t.Errorf("after reload, nameFor(0x01020304) = %q, want %q", got, "Hot Water")
	}
}

func TestNamesConfigLoadMissingFile(t *testing.T) {
	c := &namesConfig{}
	err := c.load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("load of missing file: got %v, want os.IsNotExist", err)
	}
}
