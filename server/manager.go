package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfmark/autosave"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/session"
)

var errDocumentNotFound = errors.New("document not found")

// Document is one open session with its websocket hub. Every use of the
// session must hold mu.
type Document struct {
	ID  string
	Key string

	mu      sync.Mutex
	session *session.Session
	hub     *hub
	cancel  func()
}

// Manager owns the open documents.
type Manager struct {
	newSession func() *session.Session
	store      autosave.Store
	window     time.Duration
	logger     observability.Logger
	now        func() time.Time

	mutex sync.RWMutex
	docs  map[string]*Document
}

func newManager(newSession func() *session.Session, store autosave.Store, window time.Duration, logger observability.Logger) *Manager {
	return &Manager{
		newSession: newSession,
		store:      store,
		window:     window,
		logger:     logger,
		now:        time.Now,
		docs:       make(map[string]*Document),
	}
}

// autosaveKey identifies a document by content so reopening the same file
// finds its autosave. Page edits change the content and therefore the key.
func autosaveKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Open creates a session for data and recovers any recent autosave. It
// returns the number of recovered annotations.
func (m *Manager) Open(ctx context.Context, data []byte) (*Document, int, error) {
	sess := m.newSession()
	if err := sess.Open(ctx, data); err != nil {
		return nil, 0, err
	}
	doc := &Document{
		ID:      uuid.NewString(),
		Key:     autosaveKey(data),
		session: sess,
		hub:     newHub(m.logger),
	}
	doc.cancel = sess.Subscribe(doc.hub.publish)

	recovered := 0
	if m.store != nil {
		anns, err := autosave.Recover(ctx, m.store, doc.Key, m.window, m.now())
		switch {
		case err == nil:
			recovered, err = sess.Restore(ctx, anns)
			if err != nil {
				m.logger.Warn("restore autosave failed", observability.String("doc", doc.ID), observability.Error("error", err))
			}
		case !errors.Is(err, autosave.ErrNotFound):
			m.logger.Warn("autosave lookup failed", observability.String("doc", doc.ID), observability.Error("error", err))
		}
	}

	m.mutex.Lock()
	m.docs[doc.ID] = doc
	m.mutex.Unlock()
	m.logger.Info("document session created",
		observability.String("doc", doc.ID),
		observability.Int("pages", sess.PageCount()),
		observability.Int("recovered", recovered))
	return doc, recovered, nil
}

// Get returns the open document with id.
func (m *Manager) Get(id string) (*Document, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errDocumentNotFound
	}
	return doc, nil
}

// Close drops the document with id and releases its session.
func (m *Manager) Close(id string) error {
	m.mutex.Lock()
	doc, ok := m.docs[id]
	delete(m.docs, id)
	m.mutex.Unlock()
	if !ok {
		return errDocumentNotFound
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	doc.cancel()
	doc.hub.close()
	return doc.session.Close()
}

// CloseAll releases every session.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	m.mutex.RUnlock()
	for _, id := range ids {
		m.Close(id)
	}
}

// save writes the annotations of doc to the autosave store. Callers hold doc.mu.
func (m *Manager) save(ctx context.Context, doc *Document) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, doc.Key, doc.session.Annotations()); err != nil {
		m.logger.Warn("autosave failed", observability.String("doc", doc.ID), observability.Error("error", err))
	}
}

// rekey moves the autosave of doc to the key of its current bytes. The record
// under the old key described a different page layout and is removed.
func (m *Manager) rekey(ctx context.Context, doc *Document) {
	old := doc.Key
	doc.Key = autosaveKey(doc.session.Bytes())
	if m.store == nil || old == doc.Key {
		return
	}
	if err := m.store.Delete(ctx, old); err != nil && !errors.Is(err, autosave.ErrNotFound) {
		m.logger.Warn("autosave cleanup failed", observability.String("doc", doc.ID), observability.Error("error", err))
	}
	m.save(ctx, doc)
}
