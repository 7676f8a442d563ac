package ownmapdal

import (
	"context"
	"sort"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

var (
	_ MapDataCache    = &MemoryMapDataCache{}
	_ NoteEditsStore  = &MemoryNoteEditsStore{}
	_ StatisticsStore = &MemoryStatisticsStore{}
)

type MemoryMapDataCache struct {
	elements map[ownmap.ElementKey]ownmap.Element
	mu       *sync.RWMutex
}

func NewMemoryMapDataCache() *MemoryMapDataCache {
	return &MemoryMapDataCache{make(map[ownmap.ElementKey]ownmap.Element), new(sync.RWMutex)}
}

func (c *MemoryMapDataCache) Put(ctx context.Context, elements ...ownmap.Element) errorsx.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, element := range elements {
		c.elements[element.ElementKey()] = element.CopyElement()
	}
	return nil
}

func (c *MemoryMapDataCache) GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	element, ok := c.elements[key]
	if !ok {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "element", key.String())
	}
	return element.CopyElement(), nil
}

func (c *MemoryMapDataCache) GetWaysForNode(ctx context.Context, nodeID int64) ([]*ownmap.Way, errorsx.Error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ways []*ownmap.Way
	for _, element := range c.elements {
		way, ok := element.(*ownmap.Way)
		if !ok {
			continue
		}
		for _, id := range way.NodeIDs {
			if id == nodeID {
				ways = append(ways, way.Copy())
				break
			}
		}
	}

	sort.Slice(ways, func(a, b int) bool {
		return ways[a].ID < ways[b].ID
	})
	return ways, nil
}

func (c *MemoryMapDataCache) GetRelationsForNode(ctx context.Context, nodeID int64) ([]*ownmap.Relation, errorsx.Error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var relations []*ownmap.Relation
	for _, element := range c.elements {
		relation, ok := element.(*ownmap.Relation)
		if !ok {
			continue
		}
		for _, member := range relation.Members {
			if member.Type == ownmap.ObjectTypeNode && member.Ref == nodeID {
				relations = append(relations, relation.Copy())
				break
			}
		}
	}

	sort.Slice(relations, func(a, b int) bool {
		return relations[a].ID < relations[b].ID
	})
	return relations, nil
}

func (c *MemoryMapDataCache) UpdateAll(ctx context.Context, updates *ownmapedits.MapDataUpdates) errorsx.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, idUpdate := range updates.IDUpdates {
		delete(c.elements, ownmap.ElementKey{Type: idUpdate.ElementType, ID: idUpdate.OldID})
		for _, element := range c.elements {
			idUpdate.ApplyTo(element)
		}
	}

	for _, key := range updates.Deleted {
		delete(c.elements, key)
	}

	for _, element := range updates.Updated {
		if element.IsDeleted() {
			delete(c.elements, element.ElementKey())
			continue
		}
		c.elements[element.ElementKey()] = element.CopyElement()
	}

	return nil
}

type MemoryNoteEditsStore struct {
	noteEdits []*NoteEdit
	lastID    int64
	mu        *sync.RWMutex
}

func NewMemoryNoteEditsStore() *MemoryNoteEditsStore {
	return &MemoryNoteEditsStore{mu: new(sync.RWMutex)}
}

func (s *MemoryNoteEditsStore) Add(ctx context.Context, noteEdit *NoteEdit) errorsx.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	noteEdit.ID = s.lastID
	c := *noteEdit
	s.noteEdits = append(s.noteEdits, &c)
	return nil
}

func (s *MemoryNoteEditsStore) GetAll(ctx context.Context) ([]*NoteEdit, errorsx.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var noteEdits []*NoteEdit
	for _, noteEdit := range s.noteEdits {
		c := *noteEdit
		noteEdits = append(noteEdits, &c)
	}
	return noteEdits, nil
}

func (s *MemoryNoteEditsStore) UpdateElementIDs(ctx context.Context, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, idUpdate := range idUpdates {
		for _, noteEdit := range s.noteEdits {
			if noteEdit.ElementType == idUpdate.ElementType && noteEdit.ElementID == idUpdate.OldID {
				noteEdit.ElementID = idUpdate.NewID
			}
		}
	}
	return nil
}

type statisticsKey struct {
	editType, region string
}

type MemoryStatisticsStore struct {
	regionSet *RegionSet
	counts    map[statisticsKey]int64
	mu        *sync.RWMutex
}

func NewMemoryStatisticsStore(regionSet *RegionSet) *MemoryStatisticsStore {
	return &MemoryStatisticsStore{regionSet, make(map[statisticsKey]int64), new(sync.RWMutex)}
}

func (s *MemoryStatisticsStore) add(editType string, position ownmap.Position, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statisticsKey{editType, s.regionSet.GetRegionNameForPosition(position)}
	s.counts[key] += delta
}

func (s *MemoryStatisticsStore) AddOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error {
	s.add(editType, position, 1)
	return nil
}

func (s *MemoryStatisticsStore) SubtractOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error {
	s.add(editType, position, -1)
	return nil
}

func (s *MemoryStatisticsStore) GetAll(ctx context.Context) ([]*StatisticsEntry, errorsx.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*StatisticsEntry
	for key, count := range s.counts {
		entries = append(entries, &StatisticsEntry{EditType: key.editType, Region: key.region, Count: count})
	}

	sortStatisticsEntries(entries)
	return entries, nil
}

func sortStatisticsEntries(entries []*StatisticsEntry) {
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].EditType != entries[b].EditType {
			return entries[a].EditType < entries[b].EditType
		}
		return entries[a].Region < entries[b].Region
	})
}
