package ownmapdal

import (
	"context"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

var _ EditQueue = &MemoryEditQueue{}

// MemoryEditQueue is an EditQueue that lives only as long as the process
type MemoryEditQueue struct {
	items             []*ownmapedits.Edit
	reservedIDs       map[int64][]ownmap.ElementKey
	assignedIDs       map[ownmap.ElementKey]int64
	lastEditID        int64
	lastPlaceholderID int64
	nowFunc           func() time.Time
	mu                *sync.RWMutex
}

func NewMemoryEditQueue() *MemoryEditQueue {
	return &MemoryEditQueue{
		reservedIDs: make(map[int64][]ownmap.ElementKey),
		assignedIDs: make(map[ownmap.ElementKey]int64),
		nowFunc:     time.Now,
		mu:          new(sync.RWMutex),
	}
}

func copyEdit(edit *ownmapedits.Edit) *ownmapedits.Edit {
	c := *edit
	return &c
}

func (q *MemoryEditQueue) Add(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error {
	if edit.Action == nil {
		return errorsx.Errorf("edit has no action")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.lastEditID++
	edit.ID = q.lastEditID
	edit.State = ownmapedits.SyncStatePending
	if edit.CreatedAt.IsZero() {
		edit.CreatedAt = q.nowFunc()
	}

	reserved := ownmapedits.ReservePlaceholderIDs(edit, q.lastPlaceholderID)
	if len(reserved) != 0 {
		q.lastPlaceholderID = reserved[len(reserved)-1].ID
	}
	q.reservedIDs[edit.ID] = reserved

	q.items = append(q.items, copyEdit(edit))

	return nil
}

func (q *MemoryEditQueue) GetOldestPending(ctx context.Context) (*ownmapedits.Edit, errorsx.Error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.State == ownmapedits.SyncStatePending {
			return copyEdit(item), nil
		}
	}

	// all edits are synced
	return nil, nil
}

func (q *MemoryEditQueue) markTerminal(edit *ownmapedits.Edit, state ownmapedits.SyncState) errorsx.Error {
	for _, item := range q.items {
		if item.ID != edit.ID {
			continue
		}

		if item.State.IsTerminal() {
			return errorsx.Errorf("edit %d is already %s", item.ID, item.State)
		}

		item.State = state
		edit.State = state
		return nil
	}

	return errorsx.Wrap(errorsx.ObjectNotFound, "editID", edit.ID)
}

func (q *MemoryEditQueue) MarkSynced(ctx context.Context, edit *ownmapedits.Edit, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.markTerminal(edit, ownmapedits.SyncStateSynced)
	if err != nil {
		return err
	}

	for _, idUpdate := range idUpdates {
		q.assignedIDs[ownmap.ElementKey{Type: idUpdate.ElementType, ID: idUpdate.OldID}] = idUpdate.NewID
	}

	return nil
}

func (q *MemoryEditQueue) MarkSyncFailed(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.markTerminal(edit, ownmapedits.SyncStateSyncFailed)
}

func (q *MemoryEditQueue) GetIDProvider(ctx context.Context, editID int64) (*ownmapedits.IDProvider, errorsx.Error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	reserved, ok := q.reservedIDs[editID]
	if !ok {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "editID", editID)
	}

	assigned := make(map[ownmap.ElementKey]int64, len(q.assignedIDs))
	for k, v := range q.assignedIDs {
		assigned[k] = v
	}

	return ownmapedits.NewIDProvider(reserved, assigned), nil
}

func (q *MemoryEditQueue) GetAll(ctx context.Context) ([]*ownmapedits.Edit, errorsx.Error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var edits []*ownmapedits.Edit
	for _, item := range q.items {
		edits = append(edits, copyEdit(item))
	}
	return edits, nil
}
