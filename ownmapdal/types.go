package ownmapdal

import (
	"context"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

// EditQueue holds the edits made locally, in the order they were made
type EditQueue interface {
	// Add assigns the edit its ID and reserves placeholder ids for the elements it creates.
	// For creations, the edit's ElementID is set to the placeholder of the (first) created element.
	Add(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error
	// GetOldestPending returns nil if there are no pending edits
	GetOldestPending(ctx context.Context) (*ownmapedits.Edit, errorsx.Error)
	// MarkSynced records that the edit was uploaded, and the ids the remote assigned to the elements it created
	MarkSynced(ctx context.Context, edit *ownmapedits.Edit, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error
	MarkSyncFailed(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error
	GetIDProvider(ctx context.Context, editID int64) (*ownmapedits.IDProvider, errorsx.Error)
	GetAll(ctx context.Context) ([]*ownmapedits.Edit, errorsx.Error)
}

// MapDataCache is the locally known map data
type MapDataCache interface {
	ownmapedits.MapDataRepository
	ElementPutter
	UpdateAll(ctx context.Context, updates *ownmapedits.MapDataUpdates) errorsx.Error
	GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error)
}

// NoteEdit is a note a user left about an element (e.g. "this shop has closed")
type NoteEdit struct {
	ID          int64             `json:"id" db:"id"`
	ElementType ownmap.ObjectType `json:"elementType" db:"element_type"`
	ElementID   int64             `json:"elementId" db:"element_id"`
	Text        string            `json:"text" db:"text"`
	Lat         float64           `json:"lat" db:"lat"`
	Lon         float64           `json:"lon" db:"lon"`
}

// NoteEditsStore holds note edits. They may reference elements that have only been created locally.
type NoteEditsStore interface {
	Add(ctx context.Context, noteEdit *NoteEdit) errorsx.Error
	GetAll(ctx context.Context) ([]*NoteEdit, errorsx.Error)
	UpdateElementIDs(ctx context.Context, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error
}

type StatisticsEntry struct {
	EditType string `json:"editType" db:"edit_type"`
	Region   string `json:"region" db:"region"`
	Count    int64  `json:"count" db:"count"`
}

// StatisticsStore counts the contributions made, per edit type and region
type StatisticsStore interface {
	AddOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error
	SubtractOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error
	GetAll(ctx context.Context) ([]*StatisticsEntry, errorsx.Error)
}

type DBFileType string

const (
	DBFileTypeSQLite     DBFileType = "sqlite3"
	DBFileTypePostgresql DBFileType = "postgresql"
)

type DBFileConnectionURL struct {
	Type           DBFileType
	ConnectionPath string
}

const ConnectionPathSeparator = "://"

func ParseDBConnFilePath(str string) (DBFileConnectionURL, errorsx.Error) {
	idx := strings.Index(str, ConnectionPathSeparator)
	if idx < 0 {
		return DBFileConnectionURL{}, errorsx.Errorf("couldn't find connection path separator %q in DB file path", ConnectionPathSeparator)
	}

	return DBFileConnectionURL{
		Type:           DBFileType(str[:idx]),
		ConnectionPath: str[idx+len(ConnectionPathSeparator):],
	}, nil
}
