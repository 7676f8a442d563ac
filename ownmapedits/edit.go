package ownmapedits

import (
	"time"

	"github.com/jamesrr39/ownmap-edits/ownmap"
)

type SyncState int

const (
	SyncStatePending    SyncState = 1
	SyncStateSynced     SyncState = 2
	SyncStateSyncFailed SyncState = 3
)

var syncStateNames = []string{
	"",
	"Pending",
	"Synced",
	"Sync Failed",
}

func (s SyncState) String() string {
	return syncStateNames[s]
}

// IsTerminal reports whether no further transition is allowed from this state
func (s SyncState) IsTerminal() bool {
	return s == SyncStateSynced || s == SyncStateSyncFailed
}

// Edit is one queued change to one element.
// ID is assigned by the queue and is strictly increasing in creation order.
type Edit struct {
	ID              int64
	Type            string
	ElementType     ownmap.ObjectType
	ElementID       int64
	OriginalElement ownmap.Element
	Action          EditAction
	Position        ownmap.Position
	CreatedAt       time.Time
	State           SyncState
}

func (e *Edit) ElementKey() ownmap.ElementKey {
	return ownmap.ElementKey{Type: e.ElementType, ID: e.ElementID}
}

// ElementIDUpdate is an id assigned by the remote to an element that was created with a placeholder id
type ElementIDUpdate struct {
	ElementType ownmap.ObjectType `json:"elementType"`
	OldID       int64             `json:"oldId"`
	NewID       int64             `json:"newId"`
}

// MapDataUpdates is the outcome of uploading one edit: the elements as they are now on the remote
// (with their new versions), the elements that were deleted, and ids assigned to created elements.
type MapDataUpdates struct {
	Updated   []ownmap.Element
	Deleted   []ownmap.ElementKey
	IDUpdates []ElementIDUpdate
}

// ApplyTo replaces references from a way or relation to the element's old id
func (u ElementIDUpdate) ApplyTo(element ownmap.Element) {
	switch e := element.(type) {
	case *ownmap.Way:
		if u.ElementType != ownmap.ObjectTypeNode {
			return
		}
		for i, id := range e.NodeIDs {
			if id == u.OldID {
				e.NodeIDs[i] = u.NewID
			}
		}
	case *ownmap.Relation:
		for _, member := range e.Members {
			if member.Type == u.ElementType && member.Ref == u.OldID {
				member.Ref = u.NewID
			}
		}
	}
}

// References reports whether a way or relation refers to the element's old id
func (u ElementIDUpdate) References(element ownmap.Element) bool {
	switch e := element.(type) {
	case *ownmap.Way:
		if u.ElementType != ownmap.ObjectTypeNode {
			return false
		}
		for _, id := range e.NodeIDs {
			if id == u.OldID {
				return true
			}
		}
	case *ownmap.Relation:
		for _, member := range e.Members {
			if member.Type == u.ElementType && member.Ref == u.OldID {
				return true
			}
		}
	}
	return false
}
