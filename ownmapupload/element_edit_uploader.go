package ownmapupload

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

// SingleEditUploader uploads one edit and returns what changed on the remote
type SingleEditUploader interface {
	Upload(ctx context.Context, edit *ownmapedits.Edit, getIDProvider ownmapedits.GetIDProviderFunc) (*ownmapedits.MapDataUpdates, errorsx.Error)
}

var _ SingleEditUploader = &ElementEditUploader{}

type ElementEditUploader struct {
	logger           *logpkg.Logger
	api              MapDataAPI
	changesetManager *ChangesetManager
}

func NewElementEditUploader(logger *logpkg.Logger, api MapDataAPI, changesetManager *ChangesetManager) *ElementEditUploader {
	return &ElementEditUploader{logger, api, changesetManager}
}

func (u *ElementEditUploader) Upload(ctx context.Context, edit *ownmapedits.Edit, getIDProvider ownmapedits.GetIDProviderFunc) (*ownmapedits.MapDataUpdates, errorsx.Error) {
	ids, err := getIDProvider()
	if err != nil {
		return nil, err
	}

	original := edit.OriginalElement
	var current ownmap.Element
	if !ownmapedits.IsCreation(edit.Action) {
		elementID, err := ids.Resolve(edit.ElementKey())
		if err != nil {
			return nil, err
		}

		current, err = u.api.GetElement(ctx, ownmap.ElementKey{Type: edit.ElementType, ID: elementID})
		if err != nil {
			return nil, err
		}

		if original == nil || ownmap.IsPlaceholderID(original.ElementKey().ID) {
			// the element was created by an earlier edit from this queue, so nobody else can have changed it since
			original = current
		}
	}

	elements, err := ownmapedits.CreateUpdates(ctx, edit.Action, original, current, u.api, ids)
	if err != nil {
		return nil, err
	}

	diffResult, err := u.uploadChanges(ctx, edit.Type, elements)
	if err != nil {
		return nil, err
	}

	return mapDataUpdatesFromDiffResult(elements, diffResult)
}

// uploadChanges uploads into the open changeset for the edit type, or into a new one if the remote closed it
func (u *ElementEditUploader) uploadChanges(ctx context.Context, editType string, elements []ownmap.Element) ([]*DiffResultEntry, errorsx.Error) {
	changesetID, err := u.changesetManager.GetChangesetID(ctx, editType)
	if err != nil {
		return nil, err
	}

	diffResult, err := u.api.UploadChanges(ctx, changesetID, elements)
	if err == nil {
		return diffResult, nil
	}

	if !isChangesetClosed(err) {
		return nil, err
	}

	u.logger.Debug("changeset %d was closed by the remote, retrying in a new changeset", changesetID)
	u.changesetManager.Forget(editType)

	changesetID, err = u.changesetManager.GetChangesetID(ctx, editType)
	if err != nil {
		return nil, err
	}

	return u.api.UploadChanges(ctx, changesetID, elements)
}

func withIDAndVersion(element ownmap.Element, id int64, version int) (ownmap.Element, errorsx.Error) {
	switch e := element.CopyElement().(type) {
	case *ownmap.Node:
		e.ID = id
		e.Version = version
		return e, nil
	case *ownmap.Way:
		e.ID = id
		e.Version = version
		return e, nil
	case *ownmap.Relation:
		e.ID = id
		e.Version = version
		return e, nil
	default:
		return nil, errorsx.Errorf("unsupported element: %T", element)
	}
}

// mapDataUpdatesFromDiffResult applies the ids and versions the remote assigned to the uploaded elements
func mapDataUpdatesFromDiffResult(elements []ownmap.Element, diffResult []*DiffResultEntry) (*ownmapedits.MapDataUpdates, errorsx.Error) {
	entries := make(map[ownmap.ElementKey]*DiffResultEntry)
	for _, entry := range diffResult {
		entries[ownmap.ElementKey{Type: entry.ElementType, ID: entry.OldID}] = entry
	}

	updates := new(ownmapedits.MapDataUpdates)
	for _, element := range elements {
		key := element.ElementKey()
		entry, ok := entries[key]
		if !ok {
			return nil, errorsx.Errorf("no diff result for uploaded element %s", key)
		}

		if entry.IsDeleted() {
			updates.Deleted = append(updates.Deleted, key)
			continue
		}

		updated, err := withIDAndVersion(element, entry.NewID, entry.NewVersion)
		if err != nil {
			return nil, err
		}
		updates.Updated = append(updates.Updated, updated)

		if entry.NewID != entry.OldID {
			updates.IDUpdates = append(updates.IDUpdates, ownmapedits.ElementIDUpdate{
				ElementType: entry.ElementType,
				OldID:       entry.OldID,
				NewID:       entry.NewID,
			})
		}
	}

	// elements created together may reference each other
	for _, idUpdate := range updates.IDUpdates {
		for _, element := range updates.Updated {
			idUpdate.ApplyTo(element)
		}
	}

	return updates, nil
}
