package tdbx

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/Giulio2002/tdbx/internal/engine"
)

func TestErrorCodesAndClasses(t *testing.T) {
	classes := map[ErrorClass][]ErrorCode{
		ClassConfig:   {ErrInvalidPath, ErrMapSizeTooSmall, ErrInvalidOption},
		ClassEnv:      {ErrVersionMismatch, ErrAlreadyOpenWithDifferentConfig, ErrEnvClosed, ErrEnvMismatch, ErrInvalidFile, ErrBusy, ErrReadOnly},
		ClassTxn:      {ErrUseAfterFinish, ErrWriteTxnAlreadyActive, ErrTxnReadOnly, ErrChildTxnActive, ErrBadTxn, ErrStaleView, ErrCursorUnset},
		ClassCodec:    {ErrEncode, ErrDecode, ErrReservedUnderfilled},
		ClassNotFound: {ErrNotFound},
		ClassEngine:   {ErrMapFull, ErrDiskFull, ErrReadersFull, ErrDBsFull, ErrKeyExist, ErrKeyMismatch, ErrBadValSize, ErrIncompatible, ErrCorrupted, ErrEngine},
	}
	seen := 0
	for class, codes := range classes {
		for _, code := range codes {
			seen++
			if code.Class() != class {
				t.Errorf("%d: class %v, want %v", code, code.Class(), class)
			}
			if _, ok := errorMessages[code]; !ok {
				t.Errorf("%d has no message", code)
			}
			err := NewError(code)
			if err.Class() != class || ClassOf(err) != class {
				t.Errorf("%v: ClassOf = %v", code, ClassOf(err))
			}
		}
	}
	if seen != len(errorMessages) {
		t.Fatalf("%d codes classified, %d have messages", seen, len(errorMessages))
	}

	if ClassOf(nil) != ClassUnknown || ClassOf(errors.New("x")) != ClassUnknown {
		t.Fatal("foreign errors must be ClassUnknown")
	}
	if ClassEngine.String() != "EngineError" || ClassUnknown.String() != "UnknownError" {
		t.Fatal("bad class names")
	}
	if ErrorCode(999).String() != "error 999" {
		t.Fatalf("unknown code string %q", ErrorCode(999).String())
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("outer: %w", WrapError(ErrMapFull, cause))

	if !errors.Is(err, NewError(ErrMapFull)) {
		t.Fatal("errors.Is by code failed")
	}
	if errors.Is(err, NewError(ErrDiskFull)) {
		t.Fatal("errors.Is matched a different code")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable")
	}
	if Code(err) != ErrMapFull || !IsMapFull(err) {
		t.Fatalf("Code = %v", Code(err))
	}
	if msg := err.Error(); !strings.Contains(msg, "map full") || !strings.Contains(msg, "cause") {
		t.Fatalf("message %q", msg)
	}
	if msg := NewError(ErrBusy).Error(); msg != "tdbx: environment locked by another process" {
		t.Fatalf("message %q", msg)
	}
}

func TestWrapEngine(t *testing.T) {
	if wrapEngine(nil) != nil {
		t.Fatal("wrapEngine(nil) != nil")
	}
	for _, m := range engineCodes {
		native := errors.New("native")
		err := wrapEngine(engine.Wrap(m.sentinel, native))
		if Code(err) != m.code {
			t.Errorf("%v: code %v, want %v", m.sentinel, Code(err), m.code)
		}
		if !errors.Is(err, m.sentinel) || !errors.Is(err, native) {
			t.Errorf("%v: wrapped chain lost", m.sentinel)
		}
	}

	unknown := wrapEngine(syscall.EIO)
	if Code(unknown) != ErrEngine || !errors.Is(unknown, syscall.EIO) {
		t.Fatalf("unclassified error = %v", unknown)
	}

	ours := NewError(ErrStaleView)
	if got := wrapEngine(ours); got != error(ours) {
		t.Fatal("wrapEngine rewrapped a tdbx error")
	}
}
