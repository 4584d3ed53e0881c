package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

func TestReferenceSetCap(t *testing.T) {
	refs := NewReferenceSet()

	for i := 0; i < models.MaxReferenceImages; i++ {
		if err := refs.Add(fmt.Sprintf("data:image/png;base64,ref%d", i)); err != nil {
			t.Fatalf("Add(%d) err = %v", i, err)
		}
	}
	if refs.Len() != models.MaxReferenceImages {
		t.Fatalf("Len() = %d, want %d", refs.Len(), models.MaxReferenceImages)
	}

	// The add over the cap is rejected and the set is unchanged.
	err := refs.Add("data:image/png;base64,onemore")
	if !errors.Is(err, ErrMaxReferenceImages) {
		t.Fatalf("Add() err = %v, want ErrMaxReferenceImages", err)
	}
	if refs.Len() != models.MaxReferenceImages {
		t.Errorf("Len() = %d after rejected add, want %d", refs.Len(), models.MaxReferenceImages)
	}
	images := refs.Images()
	if images[len(images)-1] != fmt.Sprintf("data:image/png;base64,ref%d", models.MaxReferenceImages-1) {
		t.Error("rejected add must not change the set")
	}
}

func TestReferenceSetOrder(t *testing.T) {
	refs := NewReferenceSet()
	refs.Add("first")
	refs.Add("second")
	refs.Add("third")

	if err := refs.Remove(1); err != nil {
		t.Fatalf("Remove() err = %v", err)
	}
	images := refs.Images()
	if len(images) != 2 || images[0] != "first" || images[1] != "third" {
		t.Errorf("Images() = %v, want order preserved", images)
	}

	if err := refs.Remove(5); err == nil {
		t.Error("Remove() out of range should fail")
	}
}

func TestReferenceSetAddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0644); err != nil {
		t.Fatal(err)
	}

	refs := NewReferenceSet()
	if err := refs.AddFile(path); err != nil {
		t.Fatalf("AddFile() err = %v", err)
	}
	images := refs.Images()
	if len(images) != 1 || !strings.HasPrefix(images[0], "data:image/jpeg;base64,") {
		t.Errorf("Images() = %v, want a jpeg data URI", images)
	}

	if err := refs.AddFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("AddFile() on a missing file should fail")
	}
}

func TestReferenceSetClear(t *testing.T) {
	refs := NewReferenceSet()
	refs.Add("a")
	refs.Clear()
	if refs.Len() != 0 {
		t.Errorf("Len() = %d after Clear", refs.Len())
	}
}

func TestReferenceSetImagesIsSnapshot(t *testing.T) {
	refs := NewReferenceSet()
	refs.Add("a")
	images := refs.Images()
	images[0] = "mutated"
	if got := refs.Images()[0]; got != "a" {
		t.Errorf("internal state mutated through snapshot: %q", got)
	}
}
