package unarchive

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure.
type Kind string

const (
	KindSourceNotFound         Kind = "SourceNotFound"
	KindUnsupportedFormat      Kind = "UnsupportedFormat"
	KindCorruptArchive         Kind = "CorruptArchive"
	KindDestinationNotWritable Kind = "DestinationNotWritable"
	KindPermissionApplyFailed  Kind = "PermissionApplyFailed"
	KindInvalidModeSpec        Kind = "InvalidModeSpec"
	KindPathConflict           Kind = "PathConflict"
	KindUnsafePath             Kind = "UnsafePath"
	KindUnsupportedEntry       Kind = "UnsupportedEntry"
)

// Sentinels for use with errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrSourceNotFound         = errors.New("source not found")
	ErrUnsupportedFormat      = errors.New("unsupported archive format")
	ErrCorruptArchive         = errors.New("corrupt archive")
	ErrDestinationNotWritable = errors.New("destination not writable")
	ErrPermissionApplyFailed  = errors.New("could not apply permissions")
	ErrInvalidModeSpec        = errors.New("invalid mode")
	ErrPathConflict           = errors.New("path conflict")
	ErrUnsafePath             = errors.New("unsafe path")
	ErrUnsupportedEntry       = errors.New("unsupported archive entry")
)

var sentinels = map[Kind]error{
	KindSourceNotFound:         ErrSourceNotFound,
	KindUnsupportedFormat:      ErrUnsupportedFormat,
	KindCorruptArchive:         ErrCorruptArchive,
	KindDestinationNotWritable: ErrDestinationNotWritable,
	KindPermissionApplyFailed:  ErrPermissionApplyFailed,
	KindInvalidModeSpec:        ErrInvalidModeSpec,
	KindPathConflict:           ErrPathConflict,
	KindUnsafePath:             ErrUnsafePath,
	KindUnsupportedEntry:       ErrUnsupportedEntry,
}

// Error is the structured failure returned by the extractor. Path names the offending
// file, Format carries the detected (or guessed) archive format when known.
type Error struct {
	Kind   Kind
	Path   string
	Format Format
	Err    error
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Format != "" {
		msg += fmt.Sprintf(" (format %s)", e.Format)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's Kind. An invalid mode also counts as a failure to apply
// permissions.
func (e *Error) Is(target error) bool {
	if e.Kind == KindInvalidModeSpec && target == ErrPermissionApplyFailed {
		return true
	}

	return sentinels[e.Kind] == target
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}
