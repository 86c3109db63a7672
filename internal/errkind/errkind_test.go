package errkind

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapRoundTrip(t *testing.T) {
	base := errors.New("disk gone")
	err := Wrap(base, KindIOFailure, true)
	if KindOf(err) != KindIOFailure {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	if !RetryableOf(err) {
		t.Fatal("expected retryable")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected cause to be preserved")
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if got := Wrap(nil, KindInternal, false); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := ParseFailureAt(3, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestParseFailureCarriesLine(t *testing.T) {
	err := ParseFailureAt(7, errors.New("unexpected end of JSON input"))
	if KindOf(err) != KindParseFailure {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	if LineOf(err) != 7 {
		t.Errorf("expected line 7, got %d", LineOf(err))
	}
	if !strings.HasPrefix(err.Error(), "line 7:") {
		t.Errorf("expected line prefix, got %q", err.Error())
	}
	if RetryableOf(err) {
		t.Error("parse failures are not retryable")
	}
}

func TestKindSurvivesFurtherWrapping(t *testing.T) {
	err := fmt.Errorf("parse incremental: %w", Unsupported("gateway"))
	if !Is(err, KindUnsupported) {
		t.Fatalf("expected unsupported kind, got %q", KindOf(err))
	}
	if !errors.Is(err, ErrIncrementalUnsupported) {
		t.Error("expected sentinel to be reachable")
	}
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := errors.New("plain")
	if KindOf(err) != "" {
		t.Errorf("unexpected kind: %s", KindOf(err))
	}
	if LineOf(err) != 0 || RetryableOf(err) {
		t.Error("unexpected classification for plain error")
	}
	if Is(nil, KindIOFailure) {
		t.Error("nil error matched a kind")
	}
}
