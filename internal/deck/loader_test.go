package deck

import (
	"path/filepath"
	"testing"
)

func TestLoad_MinimalLayout(t *testing.T) {
	result, errs := Load(filepath.Join("testdata", "layouts", "minimal"), LoadModeFailFast)
	if len(errs) > 0 {
		t.Fatalf("Load() failed: %v", errs)
	}
	if result.Layout == nil {
		t.Fatal("Load() returned nil layout")
	}
	if result.Layout.Name() != "minimal_test_deck" {
		t.Errorf("layout name = %q", result.Layout.Name())
	}
	if result.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", result.FileCount)
	}

	c, err := result.Layout.Item("RGT_01", KindReservoir60)
	if err != nil {
		t.Fatalf("Item() failed: %v", err)
	}
	if c.Positions() != 8 {
		t.Errorf("reservoir positions = %d, want 8", c.Positions())
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "layouts", "nope"), LoadModeFailFast)
	if len(errs) == 0 {
		t.Fatal("expected error for missing directory")
	}
	le, ok := errs[0].(*LoadError)
	if !ok {
		t.Fatalf("want *LoadError, got %T", errs[0])
	}
	if le.Code != ErrCodeNotFound {
		t.Errorf("code = %s, want %s", le.Code, ErrCodeNotFound)
	}
}

func TestLoad_UnknownKindReported(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "layouts", "badkind"), LoadModeCollectAll)
	if len(errs) == 0 {
		t.Fatal("expected error for unknown kind")
	}
	found := false
	for _, err := range errs {
		if le, ok := err.(*LoadError); ok && le.Code == ErrCodeBadSlot {
			found = true
		}
	}
	if !found {
		t.Errorf("no %s error in %v", ErrCodeBadSlot, errs)
	}
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles(filepath.Join("testdata", "layouts"))
	if err != nil {
		t.Fatalf("FindCUEFiles() failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("found %d files, want 2", len(files))
	}
}
