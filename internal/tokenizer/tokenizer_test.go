package tokenizer

import (
	"errors"
	"testing"
)

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	var tk HF
	if _, err := tk.Encode("Today \xff"); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("Encode() error = %v, want ErrInvalidText", err)
	}
}

func TestDecodeRejectsNegativeIDs(t *testing.T) {
	t.Parallel()

	var tk HF
	if _, err := tk.Decode([]int{1, -4}, true); err == nil {
		t.Fatal("Decode() expected error for negative id")
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() expected error without tokenizer.json")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	var tk *HF
	if err := tk.Close(); err != nil {
		t.Fatalf("Close(nil) = %v", err)
	}
	if err := (&HF{}).Close(); err != nil {
		t.Fatalf("Close(zero) = %v", err)
	}
}
