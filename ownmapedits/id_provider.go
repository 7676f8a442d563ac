package ownmapedits

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
)

// IDProvider is valid for a single upload attempt of a single edit.
//
// It hands out the placeholder ids that were reserved for the elements the edit creates,
// and resolves placeholder ids of elements created by earlier edits to the ids the remote assigned to them.
type IDProvider struct {
	reserved map[ownmap.ObjectType][]int64
	next     map[ownmap.ObjectType]int
	resolved map[ownmap.ElementKey]int64
}

// GetIDProviderFunc builds the IDProvider for an edit. It is called once the edit is about to be uploaded,
// since edits before it may have been assigned ids in the meantime.
type GetIDProviderFunc func() (*IDProvider, errorsx.Error)

func NewIDProvider(reserved []ownmap.ElementKey, resolved map[ownmap.ElementKey]int64) *IDProvider {
	reservedMap := make(map[ownmap.ObjectType][]int64)
	for _, key := range reserved {
		reservedMap[key.Type] = append(reservedMap[key.Type], key.ID)
	}

	if resolved == nil {
		resolved = make(map[ownmap.ElementKey]int64)
	}

	return &IDProvider{reservedMap, make(map[ownmap.ObjectType]int), resolved}
}

func (p *IDProvider) nextID(objectType ownmap.ObjectType) (int64, errorsx.Error) {
	idx := p.next[objectType]
	ids := p.reserved[objectType]
	if idx >= len(ids) {
		return 0, errorsx.Errorf("no more placeholder ids reserved for type %s (%d reserved)", objectType, len(ids))
	}

	p.next[objectType] = idx + 1
	return ids[idx], nil
}

func (p *IDProvider) NextNodeID() (int64, errorsx.Error) {
	return p.nextID(ownmap.ObjectTypeNode)
}

func (p *IDProvider) NextWayID() (int64, errorsx.Error) {
	return p.nextID(ownmap.ObjectTypeWay)
}

func (p *IDProvider) NextRelationID() (int64, errorsx.Error) {
	return p.nextID(ownmap.ObjectTypeRelation)
}

// Resolve returns the remote id for an element. Ids that are not placeholders are returned as they are.
func (p *IDProvider) Resolve(key ownmap.ElementKey) (int64, errorsx.Error) {
	if !ownmap.IsPlaceholderID(key.ID) {
		return key.ID, nil
	}

	newID, ok := p.resolved[key]
	if !ok {
		return 0, errorsx.Wrap(ErrUnresolvedPlaceholder, "element", key.String())
	}

	return newID, nil
}

// ReservePlaceholderIDs picks placeholder ids for the elements the edit creates, counting down from lastPlaceholderID.
// A creation edit without an element id is pointed at the element it creates, so that later edits can reference it.
func ReservePlaceholderIDs(edit *Edit, lastPlaceholderID int64) []ownmap.ElementKey {
	count := NewElementsCountFor(edit.Action)

	var reserved []ownmap.ElementKey
	for _, typeCount := range []struct {
		objectType ownmap.ObjectType
		count      int
	}{
		{ownmap.ObjectTypeNode, count.Nodes},
		{ownmap.ObjectTypeWay, count.Ways},
		{ownmap.ObjectTypeRelation, count.Relations},
	} {
		for i := 0; i < typeCount.count; i++ {
			lastPlaceholderID--
			reserved = append(reserved, ownmap.ElementKey{Type: typeCount.objectType, ID: lastPlaceholderID})
		}
	}

	if IsCreation(edit.Action) && edit.ElementID == 0 {
		for _, key := range reserved {
			if key.Type == edit.ElementType {
				edit.ElementID = key.ID
				break
			}
		}
	}

	return reserved
}
