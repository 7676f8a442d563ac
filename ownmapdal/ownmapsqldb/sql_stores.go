package ownmapsqldb

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jmoiron/sqlx"
)

var (
	_ ownmapdal.NoteEditsStore  = &SQLNoteEditsStore{}
	_ ownmapdal.StatisticsStore = &SQLStatisticsStore{}
)

type SQLNoteEditsStore struct {
	db *sqlx.DB
}

func NewSQLNoteEditsStore(db *sqlx.DB) *SQLNoteEditsStore {
	return &SQLNoteEditsStore{db}
}

func (s *SQLNoteEditsStore) Add(ctx context.Context, noteEdit *ownmapdal.NoteEdit) errorsx.Error {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO note_edits (element_type, element_id, text, lat, lon)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		noteEdit.ElementType, noteEdit.ElementID, noteEdit.Text, noteEdit.Lat, noteEdit.Lon,
	).Scan(&id)
	if err != nil {
		return errorsx.Wrap(err)
	}

	noteEdit.ID = id
	return nil
}

func (s *SQLNoteEditsStore) GetAll(ctx context.Context) ([]*ownmapdal.NoteEdit, errorsx.Error) {
	var noteEdits []*ownmapdal.NoteEdit
	err := s.db.SelectContext(ctx, &noteEdits, `SELECT id, element_type, element_id, text, lat, lon FROM note_edits ORDER BY id`)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return noteEdits, nil
}

func (s *SQLNoteEditsStore) UpdateElementIDs(ctx context.Context, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	for _, idUpdate := range idUpdates {
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE note_edits SET element_id = ? WHERE element_type = ? AND element_id = ?`),
			idUpdate.NewID, idUpdate.ElementType, idUpdate.OldID)
		if err != nil {
			return errorsx.Wrap(err, "elementType", idUpdate.ElementType, "oldID", idUpdate.OldID)
		}
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

// SQLStatisticsStore counts contributions per edit type and region
type SQLStatisticsStore struct {
	db        *sqlx.DB
	regionSet *ownmapdal.RegionSet
}

func NewSQLStatisticsStore(db *sqlx.DB, regionSet *ownmapdal.RegionSet) *SQLStatisticsStore {
	return &SQLStatisticsStore{db, regionSet}
}

func (s *SQLStatisticsStore) add(ctx context.Context, editType string, position ownmap.Position, delta int64) errorsx.Error {
	region := s.regionSet.GetRegionNameForPosition(position)

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO statistics (edit_type, region, count)
		VALUES (?, ?, ?)
		ON CONFLICT (edit_type, region) DO UPDATE SET count = statistics.count + excluded.count`),
		editType, region, delta)
	if err != nil {
		return errorsx.Wrap(err, "editType", editType, "region", region)
	}

	return nil
}

func (s *SQLStatisticsStore) AddOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error {
	return s.add(ctx, editType, position, 1)
}

func (s *SQLStatisticsStore) SubtractOne(ctx context.Context, editType string, position ownmap.Position) errorsx.Error {
	return s.add(ctx, editType, position, -1)
}

func (s *SQLStatisticsStore) GetAll(ctx context.Context) ([]*ownmapdal.StatisticsEntry, errorsx.Error) {
	var entries []*ownmapdal.StatisticsEntry
	err := s.db.SelectContext(ctx, &entries, `SELECT edit_type, region, count FROM statistics ORDER BY edit_type, region`)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return entries, nil
}
