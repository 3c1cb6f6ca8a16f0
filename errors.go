package tdbx

import (
	"errors"
	"fmt"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// Error represents a tdbx error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tdbx: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tdbx: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so
// errors.Is(err, NewError(ErrMapFull)) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Class returns the taxonomy class of the error.
func (e *Error) Class() ErrorClass {
	return e.Code.Class()
}

// ErrorClass groups error codes by the layer that produced them.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassConfig
	ClassEnv
	ClassTxn
	ClassCodec
	ClassNotFound
	ClassEngine
)

func (c ErrorClass) String() string {
	switch c {
	case ClassConfig:
		return "ConfigError"
	case ClassEnv:
		return "EnvError"
	case ClassTxn:
		return "TxnError"
	case ClassCodec:
		return "CodecError"
	case ClassNotFound:
		return "NotFoundError"
	case ClassEngine:
		return "EngineError"
	}
	return "UnknownError"
}

// ErrorCode identifies a failure. The hundreds digit is the ErrorClass.
type ErrorCode int

// Configuration errors
const (
	// ErrInvalidPath indicates the path is empty, of the wrong kind, or cannot be created
	ErrInvalidPath ErrorCode = 100 + iota

	// ErrMapSizeTooSmall indicates a map size below MinMapSize
	ErrMapSizeTooSmall

	// ErrInvalidOption indicates an unknown engine, flag or negative limit
	ErrInvalidOption
)

// Environment errors
const (
	// ErrVersionMismatch indicates the data file was written by an incompatible format version
	ErrVersionMismatch ErrorCode = 200 + iota

	// ErrAlreadyOpenWithDifferentConfig indicates the path is registered with other options
	ErrAlreadyOpenWithDifferentConfig

	// ErrEnvClosed indicates the environment was closed
	ErrEnvClosed

	// ErrEnvMismatch indicates a handle and transaction from different environments
	ErrEnvMismatch

	// ErrInvalidFile indicates the path does not hold a valid data file
	ErrInvalidFile

	// ErrBusy indicates another process holds the environment lock
	ErrBusy

	// ErrReadOnly indicates a write against a read-only environment
	ErrReadOnly
)

// Transaction errors
const (
	// ErrUseAfterFinish indicates use of a committed or aborted transaction, or of its cursors
	ErrUseAfterFinish ErrorCode = 300 + iota

	// ErrWriteTxnAlreadyActive indicates the single write slot is taken
	ErrWriteTxnAlreadyActive

	// ErrTxnReadOnly indicates a mutation inside a read-only transaction
	ErrTxnReadOnly

	// ErrChildTxnActive indicates use of a parent while its child is live
	ErrChildTxnActive

	// ErrBadTxn indicates a nil or foreign transaction
	ErrBadTxn

	// ErrStaleView indicates a view outlived a mutation in its write transaction
	ErrStaleView

	// ErrCursorUnset indicates a current-entry operation on an unpositioned cursor
	ErrCursorUnset
)

// Codec errors
const (
	// ErrEncode indicates a key or value codec failed to encode
	ErrEncode ErrorCode = 400 + iota

	// ErrDecode indicates stored bytes could not be decoded
	ErrDecode

	// ErrReservedUnderfilled indicates PutReserved left reserved bytes unwritten
	ErrReservedUnderfilled
)

// Not found errors
const (
	// ErrNotFound indicates the named database does not exist and Create was not given
	ErrNotFound ErrorCode = 500 + iota
)

// Engine errors
const (
	// ErrMapFull indicates the environment map size was reached
	ErrMapFull ErrorCode = 600 + iota

	// ErrDiskFull indicates the device ran out of space
	ErrDiskFull

	// ErrReadersFull indicates the environment max readers was reached
	ErrReadersFull

	// ErrDBsFull indicates the environment max databases was reached
	ErrDBsFull

	// ErrKeyExist indicates the key already exists
	ErrKeyExist

	// ErrKeyMismatch indicates an append out of key order
	ErrKeyMismatch

	// ErrBadValSize indicates an unsupported key or value size
	ErrBadValSize

	// ErrIncompatible indicates the engine does not support the operation
	ErrIncompatible

	// ErrCorrupted indicates the data file is corrupted
	ErrCorrupted

	// ErrEngine is an engine failure with no finer classification
	ErrEngine
)

// errorMessages maps error codes to messages
var errorMessages = map[ErrorCode]string{
	ErrInvalidPath:                    "invalid environment path",
	ErrMapSizeTooSmall:                "map size too small",
	ErrInvalidOption:                  "invalid option",
	ErrVersionMismatch:                "data format version mismatch",
	ErrAlreadyOpenWithDifferentConfig: "environment already open with a different configuration",
	ErrEnvClosed:                      "environment closed",
	ErrEnvMismatch:                    "database belongs to another environment",
	ErrInvalidFile:                    "not a valid data file",
	ErrBusy:                           "environment locked by another process",
	ErrReadOnly:                       "environment is read-only",
	ErrUseAfterFinish:                 "transaction already finished",
	ErrWriteTxnAlreadyActive:          "write transaction already active",
	ErrTxnReadOnly:                    "read-only transaction",
	ErrChildTxnActive:                 "child transaction active",
	ErrBadTxn:                         "invalid transaction",
	ErrStaleView:                      "view invalidated by a later write",
	ErrCursorUnset:                    "cursor not positioned",
	ErrEncode:                         "encode failed",
	ErrDecode:                         "decode failed",
	ErrReservedUnderfilled:            "reserved space not fully written",
	ErrNotFound:                       "database not found",
	ErrMapFull:                        "map full",
	ErrDiskFull:                       "disk full",
	ErrReadersFull:                    "reader slots exhausted",
	ErrDBsFull:                        "database limit reached",
	ErrKeyExist:                       "key exists",
	ErrKeyMismatch:                    "key out of order",
	ErrBadValSize:                     "bad key or value size",
	ErrIncompatible:                   "operation not supported by engine",
	ErrCorrupted:                      "data corrupted",
	ErrEngine:                         "engine error",
}

// Class returns the taxonomy class of the code.
func (c ErrorCode) Class() ErrorClass {
	switch c / 100 {
	case 1:
		return ClassConfig
	case 2:
		return ClassEnv
	case 3:
		return ClassTxn
	case 4:
		return ClassCodec
	case 5:
		return ClassNotFound
	case 6:
		return ClassEngine
	}
	return ClassUnknown
}

func (c ErrorCode) String() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("error %d", int(c))
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	return &Error{
		Code:    code,
		Message: code.String(),
	}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	return &Error{
		Code:    code,
		Message: code.String(),
		Err:     err,
	}
}

// Code returns the error code of err, or 0 when err is not a tdbx error.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// ClassOf returns the taxonomy class of err.
func ClassOf(err error) ErrorClass {
	return Code(err).Class()
}

// IsNotFound returns true if the named database does not exist.
func IsNotFound(err error) bool {
	return Code(err) == ErrNotFound
}

// IsMapFull returns true if the map size was reached.
func IsMapFull(err error) bool {
	return Code(err) == ErrMapFull
}

// IsReadersFull returns true if the reader slots are exhausted.
func IsReadersFull(err error) bool {
	return Code(err) == ErrReadersFull
}

// IsUseAfterFinish returns true if a finished transaction was used.
func IsUseAfterFinish(err error) bool {
	return Code(err) == ErrUseAfterFinish
}

// IsWriteTxnAlreadyActive returns true if the write slot was taken.
func IsWriteTxnAlreadyActive(err error) bool {
	return Code(err) == ErrWriteTxnAlreadyActive
}

// IsKeyExist returns true if the key already exists.
func IsKeyExist(err error) bool {
	return Code(err) == ErrKeyExist
}

// IsDecode returns true if stored bytes failed to decode.
func IsDecode(err error) bool {
	return Code(err) == ErrDecode
}

// engineCodes maps engine sentinels to codes. The first match wins.
var engineCodes = []struct {
	sentinel error
	code     ErrorCode
}{
	{engine.ErrMapFull, ErrMapFull},
	{engine.ErrDiskFull, ErrDiskFull},
	{engine.ErrReadersFull, ErrReadersFull},
	{engine.ErrDBsFull, ErrDBsFull},
	{engine.ErrKeyExist, ErrKeyExist},
	{engine.ErrKeyMismatch, ErrKeyMismatch},
	{engine.ErrBadValSize, ErrBadValSize},
	{engine.ErrIncompatible, ErrIncompatible},
	{engine.ErrCorrupted, ErrCorrupted},
	{engine.ErrVersionMismatch, ErrVersionMismatch},
	{engine.ErrInvalid, ErrInvalidFile},
	{engine.ErrBusy, ErrBusy},
	{engine.ErrReadOnly, ErrReadOnly},
	{engine.ErrNotFound, ErrNotFound},
	{engine.ErrUnknownDriver, ErrInvalidOption},
}

// wrapEngine classifies an error returned by a driver. Nothing is dropped:
// unclassified failures become ErrEngine with the native error attached.
func wrapEngine(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	for _, m := range engineCodes {
		if errors.Is(err, m.sentinel) {
			return WrapError(m.code, err)
		}
	}
	return WrapError(ErrEngine, err)
}
