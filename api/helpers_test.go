package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/warrant"
)

func TestMapErrorPassesThroughUnknown(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("expected nil for nil")
	}
	boom := errors.New("boom")
	if got := mapError(boom); got != boom {
		t.Fatalf("expected untyped error unchanged, got %v", got)
	}
}

func TestMapErrorTranslatesKinds(t *testing.T) {
	for _, kind := range []warrant.Kind{
		warrant.KindValidation,
		warrant.KindNotFound,
		warrant.KindInvalidState,
		warrant.KindUnsupportedStrategy,
	} {
		err := fmt.Errorf("wrapped: %w", &warrant.Error{Kind: kind, Message: "x"})
		if got := mapError(err); got == err {
			t.Fatalf("%s: expected translated error", kind)
		}
	}
}

func TestDefaultLimit(t *testing.T) {
	if defaultLimit(0) != 50 || defaultLimit(-1) != 50 {
		t.Fatal("expected default of 50")
	}
	if defaultLimit(5000) != 1000 {
		t.Fatal("expected cap of 1000")
	}
	if defaultLimit(20) != 20 {
		t.Fatal("expected explicit limit kept")
	}
}
