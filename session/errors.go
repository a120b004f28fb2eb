package session

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNoDocument is returned by operations that need an open document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrPageOutOfRange is returned when a page number is outside [1, PageCount].
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrLastPage is returned when deleting the only page of a document.
	ErrLastPage = errors.New("cannot delete the last page")
	// ErrNoEditor is returned by page structure operations when the session
	// has no page editor.
	ErrNoEditor = errors.New("page editing unavailable")
	// ErrDuplicateID is returned when a record reuses an id already stored.
	ErrDuplicateID = errors.New("duplicate annotation id")
)

// LoadErrorKind classifies a failed Open.
type LoadErrorKind string

const (
	LoadInvalid  LoadErrorKind = "invalid"
	LoadPassword LoadErrorKind = "password"
	LoadNetwork  LoadErrorKind = "network"
	LoadUnknown  LoadErrorKind = "unknown"
)

// LoadError reports why a document could not be opened.
type LoadError struct {
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document (%s): %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Message returns a short text suitable for showing to the user.
func (e *LoadError) Message() string {
	switch e.Kind {
	case LoadInvalid:
		return "The file is not a valid PDF or it is damaged."
	case LoadPassword:
		return "The PDF is password protected; encrypted documents are not supported."
	case LoadNetwork:
		return "A network problem prevented loading the document."
	default:
		return "The document could not be loaded: " + e.Err.Error()
	}
}

// classifyLoadError wraps err in a *LoadError by matching its text and type.
func classifyLoadError(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	msg := strings.ToLower(err.Error())
	var netErr net.Error
	switch {
	case strings.Contains(msg, "password"), strings.Contains(msg, "encrypt"):
		return &LoadError{Kind: LoadPassword, Err: err}
	case errors.As(err, &netErr), strings.Contains(msg, "network"), strings.Contains(msg, "fetch"):
		return &LoadError{Kind: LoadNetwork, Err: err}
	case strings.Contains(msg, "invalid pdf"), strings.Contains(msg, "malformed"),
		strings.Contains(msg, "corrupt"), strings.Contains(msg, "no pages"):
		return &LoadError{Kind: LoadInvalid, Err: err}
	default:
		return &LoadError{Kind: LoadUnknown, Err: err}
	}
}
