package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeErrorMatchingAcrossCopies(t *testing.T) {
	wrapped := ErrAuthTimeout.WrapMsg("conn stalled", "conn_id", "abc")
	if !errors.Is(wrapped, ErrAuthTimeout) {
		t.Fatal("WrapMsg copy must still match its sentinel")
	}
	if errors.Is(wrapped, ErrAuthInvalid) {
		t.Fatal("different codes must not match")
	}

	detailed := ErrPersistence.WithDetail("mongo down")
	if !errors.Is(detailed, ErrPersistence) {
		t.Fatal("WithDetail copy must still match its sentinel")
	}
}

func TestSentinelsStayImmutable(t *testing.T) {
	before := ErrDelivery.Error()
	_ = ErrDelivery.WithDetail("queue full")
	_ = ErrDelivery.WrapMsg("fanout", "conn", "c1")
	if ErrDelivery.Error() != before {
		t.Fatalf("sentinel mutated: %q", ErrDelivery.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(ErrSessionReplaced.Wrap()); got != CodeSessionReplaced {
		t.Fatalf("CodeOf=%d", got)
	}
	if got := CodeOf(errors.New("plain")); got != 0 {
		t.Fatalf("plain error: CodeOf=%d", got)
	}
	if got := CodeOf(fmt.Errorf("outer: %w", ErrMalformedFrame)); got != CodeMalformedFrame {
		t.Fatalf("wrapped: CodeOf=%d", got)
	}
}

func TestWrapMsgFormatsContext(t *testing.T) {
	err := ErrNotAuthorized.WrapMsg("sender mismatch", "declared", "9", "bound", "1")
	var ce *CodeError
	if !errors.As(err, &ce) {
		t.Fatal("lost CodeError through WrapMsg")
	}
	if ce.Detail != "sender mismatch, declared=9, bound=1" {
		t.Fatalf("detail=%q", ce.Detail)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if WrapMsg(nil, "context") != nil {
		t.Fatal("WrapMsg(nil) must stay nil")
	}
}
