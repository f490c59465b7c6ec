package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestOpErrorWrapUnwrap(t *testing.T) {
	root := errors.New("root")
	err := &OpError{Op: "reshape", Kind: KindDataQuality, Err: root}

	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is to match cause")
	}

	var got *OpError
	if !errors.As(err, &got) {
		t.Fatalf("expected errors.As to match OpError")
	}
	if got.Kind != KindDataQuality {
		t.Fatalf("expected kind %s, got %s", KindDataQuality, got.Kind)
	}
}

func TestOpError_Message(t *testing.T) {
	err := &OpError{Op: "load", Kind: KindDataQuality, Path: "data.xlsx", Err: errors.New("boom")}
	want := "load: data_quality (path=data.xlsx): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	inner := Errorf("graph", KindGraphIntegrity, "bad")
	outer := fmt.Errorf("pipeline: %w", inner)

	if !IsKind(outer, KindGraphIntegrity) {
		t.Fatal("expected IsKind to see through fmt wrapping")
	}
	if IsKind(outer, KindSolver) {
		t.Fatal("unexpected kind match")
	}
}

func TestIsKind_NestedOpErrors(t *testing.T) {
	inner := Errorf("lincomb", KindAlignment, "columns")
	outer := Wrap("fit", KindSolver, inner)

	if !IsKind(outer, KindSolver) || !IsKind(outer, KindAlignment) {
		t.Fatal("expected both kinds to be found in the chain")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap("x", KindConfig, nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestAsymmetryError(t *testing.T) {
	var err error = Wrap("graph", KindGraphIntegrity, &AsymmetryError{Cells: 4})
	var ae *AsymmetryError
	if !errors.As(err, &ae) || ae.Cells != 4 {
		t.Fatalf("expected AsymmetryError with 4 cells, got %v", err)
	}
}
