package ownmapupload

import (
	"context"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
)

// DefaultChangesetMaxIdle is how long a changeset is reused after its last upload.
// The remote closes changesets itself after an hour of inactivity.
const DefaultChangesetMaxIdle = 20 * time.Minute

type openChangeset struct {
	id       int64
	lastUsed time.Time
}

// ChangesetManager keeps one open changeset per edit type, so that edits of the same type end up together
type ChangesetManager struct {
	logger    *logpkg.Logger
	api       ChangesetAPI
	createdBy string
	maxIdle   time.Duration
	nowFunc   func() time.Time

	changesets map[string]*openChangeset
	mu         *sync.Mutex
}

func NewChangesetManager(logger *logpkg.Logger, api ChangesetAPI, createdBy string, maxIdle time.Duration) *ChangesetManager {
	return &ChangesetManager{
		logger:     logger,
		api:        api,
		createdBy:  createdBy,
		maxIdle:    maxIdle,
		nowFunc:    time.Now,
		changesets: make(map[string]*openChangeset),
		mu:         new(sync.Mutex),
	}
}

func (m *ChangesetManager) changesetTags(editType string) ownmap.TagMap {
	return ownmap.TagMap{
		"created_by": m.createdBy,
		"comment":    editType,
	}
}

// GetChangesetID returns the open changeset for the edit type, opening a new one
// if there is none or the current one has been idle for too long
func (m *ChangesetManager) GetChangesetID(ctx context.Context, editType string) (int64, errorsx.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()

	changeset, ok := m.changesets[editType]
	if ok {
		if now.Sub(changeset.lastUsed) <= m.maxIdle {
			changeset.lastUsed = now
			return changeset.id, nil
		}

		err := m.api.CloseChangeset(ctx, changeset.id)
		if err != nil {
			// the remote may well have closed it already
			m.logger.Warn("failed to close idle changeset %d: %s", changeset.id, err.Error())
		}
		delete(m.changesets, editType)
	}

	changesetID, err := m.api.OpenChangeset(ctx, m.changesetTags(editType))
	if err != nil {
		return 0, errorsx.Wrap(err, "editType", editType)
	}

	m.logger.Debug("opened changeset %d for %q edits", changesetID, editType)
	m.changesets[editType] = &openChangeset{changesetID, now}

	return changesetID, nil
}

// Forget drops the changeset for the edit type without closing it, for when the remote has closed it
func (m *ChangesetManager) Forget(editType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.changesets, editType)
}

// CloseAll closes every open changeset
func (m *ChangesetManager) CloseAll(ctx context.Context) errorsx.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for editType, changeset := range m.changesets {
		err := m.api.CloseChangeset(ctx, changeset.id)
		if err != nil && !isChangesetClosed(err) {
			return errorsx.Wrap(err, "editType", editType)
		}
		delete(m.changesets, editType)
	}

	return nil
}
