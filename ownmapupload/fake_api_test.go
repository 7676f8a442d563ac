package ownmapupload

import (
	"context"
	"sort"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

var _ MapDataAPI = &fakeAPI{}

// fakeAPI is a remote map database held in memory
type fakeAPI struct {
	mu       sync.Mutex
	elements map[ownmap.ElementKey]ownmap.Element
	lastID   int64

	openChangesets   map[int64]ownmap.TagMap
	closedChangesets []int64
	lastChangesetID  int64

	// uploads holds the changeset id and elements of every upload attempt
	uploads []fakeUpload

	// closeChangesetsBeforeUpload makes the next upload fail as if the remote closed the changeset
	closeChangesetsBeforeUpload int
	// omitDiffResult leaves the elements out of the diff result
	omitDiffResult bool
}

type fakeUpload struct {
	changesetID int64
	elements    []ownmap.Element
}

func newFakeAPI(elements ...ownmap.Element) *fakeAPI {
	api := &fakeAPI{
		elements:       make(map[ownmap.ElementKey]ownmap.Element),
		lastID:         1000,
		openChangesets: make(map[int64]ownmap.TagMap),
	}
	for _, element := range elements {
		api.elements[element.ElementKey()] = element.CopyElement()
	}
	return api
}

func (a *fakeAPI) GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	element, ok := a.elements[key]
	if !ok {
		return nil, ownmapedits.NewConflictError("%s does not exist", key)
	}
	if element.IsDeleted() {
		return nil, ownmapedits.NewConflictError("%s has been deleted", key)
	}
	return element.CopyElement(), nil
}

func (a *fakeAPI) GetWaysForNode(ctx context.Context, nodeID int64) ([]*ownmap.Way, errorsx.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ways []*ownmap.Way
	for _, element := range a.elements {
		way, ok := element.(*ownmap.Way)
		if !ok || way.Deleted {
			continue
		}
		for _, id := range way.NodeIDs {
			if id == nodeID {
				ways = append(ways, way.Copy())
				break
			}
		}
	}
	sort.Slice(ways, func(i, j int) bool { return ways[i].ID < ways[j].ID })
	return ways, nil
}

func (a *fakeAPI) GetRelationsForNode(ctx context.Context, nodeID int64) ([]*ownmap.Relation, errorsx.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var relations []*ownmap.Relation
	for _, element := range a.elements {
		relation, ok := element.(*ownmap.Relation)
		if !ok || relation.Deleted {
			continue
		}
		for _, member := range relation.Members {
			if member.Type == ownmap.ObjectTypeNode && member.Ref == nodeID {
				relations = append(relations, relation.Copy())
				break
			}
		}
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i].ID < relations[j].ID })
	return relations, nil
}

func (a *fakeAPI) OpenChangeset(ctx context.Context, tags ownmap.TagMap) (int64, errorsx.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastChangesetID++
	a.openChangesets[a.lastChangesetID] = tags.Copy()
	return a.lastChangesetID, nil
}

func (a *fakeAPI) CloseChangeset(ctx context.Context, changesetID int64) errorsx.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.openChangesets[changesetID]; !ok {
		return errorsx.Wrap(ErrChangesetClosed, "changesetID", changesetID)
	}
	delete(a.openChangesets, changesetID)
	a.closedChangesets = append(a.closedChangesets, changesetID)
	return nil
}

func (a *fakeAPI) UploadChanges(ctx context.Context, changesetID int64, elements []ownmap.Element) ([]*DiffResultEntry, errorsx.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.uploads = append(a.uploads, fakeUpload{changesetID, elements})

	if a.closeChangesetsBeforeUpload > 0 {
		a.closeChangesetsBeforeUpload--
		delete(a.openChangesets, changesetID)
	}

	if _, ok := a.openChangesets[changesetID]; !ok {
		return nil, errorsx.Wrap(ErrChangesetClosed, "changesetID", changesetID)
	}

	for _, element := range elements {
		key := element.ElementKey()
		if ownmap.IsPlaceholderID(key.ID) {
			continue
		}
		existing, ok := a.elements[key]
		if !ok || existing.GetVersion() != element.GetVersion() {
			return nil, ownmapedits.NewConflictError("version mismatch for %s", key)
		}
	}

	var diffResult []*DiffResultEntry
	for _, element := range elements {
		key := element.ElementKey()
		entry := &DiffResultEntry{ElementType: key.Type, OldID: key.ID}

		if element.IsDeleted() {
			a.elements[key] = element.CopyElement()
		} else {
			newID := key.ID
			if ownmap.IsPlaceholderID(key.ID) {
				a.lastID++
				newID = a.lastID
			}
			stored, err := withIDAndVersion(element, newID, element.GetVersion()+1)
			if err != nil {
				return nil, err
			}
			a.elements[stored.ElementKey()] = stored
			entry.NewID = newID
			entry.NewVersion = stored.GetVersion()
		}

		if !a.omitDiffResult {
			diffResult = append(diffResult, entry)
		}
	}

	return diffResult, nil
}
