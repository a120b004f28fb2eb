// Package autosave persists the annotation store of a session so that work
// survives a crash or a closed tab. Records older than the recovery window
// are discarded on read.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfmark/annotation"
)

// DefaultWindow is how long a saved record stays recoverable.
const DefaultWindow = 24 * time.Hour

// ErrNotFound is returned when no live record exists for a key.
var ErrNotFound = errors.New("autosave record not found")

// Record is one saved annotation set.
type Record struct {
	Key         string          `json:"key"`
	Annotations json.RawMessage `json:"annotations"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Decode returns the annotations held by the record.
func (r Record) Decode() ([]annotation.Annotation, error) {
	return annotation.Unmarshal(r.Annotations)
}

// Store is the persistence backend for autosave records.
type Store interface {
	Save(ctx context.Context, key string, anns []annotation.Annotation) error
	Load(ctx context.Context, key string) (Record, error)
	Delete(ctx context.Context, key string) error
}

func newRecord(key string, anns []annotation.Annotation, now time.Time) (Record, error) {
	if key == "" {
		return Record{}, errors.New("autosave key is empty")
	}
	data, err := annotation.Marshal(anns)
	if err != nil {
		return Record{}, fmt.Errorf("encode annotations: %w", err)
	}
	return Record{Key: key, Annotations: data, SavedAt: now.UTC()}, nil
}

// Recover loads the record for key and returns its annotations if it was
// saved within window of now. Expired records are deleted and reported as
// ErrNotFound. A non-positive window uses DefaultWindow.
func Recover(ctx context.Context, store Store, key string, window time.Duration, now time.Time) ([]annotation.Annotation, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	rec, err := store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if now.Sub(rec.SavedAt) > window {
		if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("delete expired record: %w", err)
		}
		return nil, ErrNotFound
	}
	anns, err := rec.Decode()
	if err != nil {
		return nil, fmt.Errorf("recover %s: %w", key, err)
	}
	return anns, nil
}
