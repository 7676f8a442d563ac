package ownmapupload

import (
	"context"
	"errors"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

var (
	// ErrChangesetClosed means the remote closed the changeset (e.g. after it was idle for too long),
	// and the upload can be retried in a new one
	ErrChangesetClosed = errors.New("changeset closed")
)

func isChangesetClosed(err error) bool {
	if err == nil {
		return false
	}
	return errorsx.Cause(err) == ErrChangesetClosed
}

// ChangesetAPI opens and closes changesets on the remote
type ChangesetAPI interface {
	OpenChangeset(ctx context.Context, tags ownmap.TagMap) (int64, errorsx.Error)
	CloseChangeset(ctx context.Context, changesetID int64) errorsx.Error
}

// MapDataAPI is the remote map database.
//
// GetElement fails with a conflict error if the element does not exist (anymore).
// UploadChanges fails with a conflict error if the remote rejects the changes because of their versions,
// and with ErrChangesetClosed if the changeset can no longer be used.
type MapDataAPI interface {
	ownmapedits.MapDataRepository
	ChangesetAPI
	GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error)
	UploadChanges(ctx context.Context, changesetID int64, elements []ownmap.Element) ([]*DiffResultEntry, errorsx.Error)
}

// DiffResultEntry is what the remote did with one uploaded element.
// NewID and NewVersion are 0 for deleted elements.
type DiffResultEntry struct {
	ElementType ownmap.ObjectType
	OldID       int64
	NewID       int64
	NewVersion  int
}

func (e *DiffResultEntry) IsDeleted() bool {
	return e.NewID == 0
}
