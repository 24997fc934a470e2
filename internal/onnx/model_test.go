package onnx

import (
	"context"
	"os"
	"testing"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

// TestForwardExportedModel runs against a real export when
// GENSERVE_ONNX_TEST_MODEL points at a .onnx causal LM.
func TestForwardExportedModel(t *testing.T) {
	path := os.Getenv("GENSERVE_ONNX_TEST_MODEL")
	if path == "" {
		t.Skip("GENSERVE_ONNX_TEST_MODEL not set")
	}

	m, err := Open(Options{Path: path, LibraryPath: os.Getenv("GENSERVE_ONNX_LIBRARY")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	row, err := m.Forward(context.Background(), []int{1, 20639, 315})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(row) != m.VocabSize() {
		t.Fatalf("logits width %d, want %d", len(row), m.VocabSize())
	}
	if _, err := m.Forward(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty sequence")
	}
}
