// Package recovery decides what happens when a single item of a batch
// operation (one annotation of an export, one page of a load) fails.
package recovery

import "fmt"

type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies the item that failed.
type Location struct {
	Page         int
	AnnotationID string
	Component    string
}

func (l Location) String() string {
	switch {
	case l.AnnotationID != "":
		return fmt.Sprintf("%s page %d annotation %s", l.Component, l.Page, l.AnnotationID)
	case l.Page > 0:
		return fmt.Sprintf("%s page %d", l.Component, l.Page)
	default:
		return l.Component
	}
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}

type Context interface{ Done() <-chan struct{} }
