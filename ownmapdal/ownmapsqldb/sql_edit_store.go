package ownmapsqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jmoiron/sqlx"
)

var _ ownmapdal.EditQueue = &SQLEditStore{}

// SQLEditStore is an EditQueue kept in a sqlite or postgresql database
type SQLEditStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
}

func NewSQLEditStore(db *sqlx.DB) *SQLEditStore {
	return &SQLEditStore{db, time.Now}
}

type editRow struct {
	ID              int64                 `db:"id"`
	EditType        string                `db:"edit_type"`
	ElementType     ownmap.ObjectType     `db:"element_type"`
	ElementID       int64                 `db:"element_id"`
	OriginalElement []byte                `db:"original_element"`
	Action          []byte                `db:"action"`
	Lat             float64               `db:"lat"`
	Lon             float64               `db:"lon"`
	CreatedAtMs     int64                 `db:"created_at_ms"`
	State           ownmapedits.SyncState `db:"state"`
}

func (row *editRow) toEdit() (*ownmapedits.Edit, errorsx.Error) {
	action, err := ownmapedits.UnmarshalAction(row.Action)
	if err != nil {
		return nil, errorsx.Wrap(err, "editID", row.ID)
	}

	var originalElement ownmap.Element
	if len(row.OriginalElement) != 0 {
		originalElement, err = ownmapedits.UnmarshalElement(row.OriginalElement)
		if err != nil {
			return nil, errorsx.Wrap(err, "editID", row.ID)
		}
	}

	return &ownmapedits.Edit{
		ID:              row.ID,
		Type:            row.EditType,
		ElementType:     row.ElementType,
		ElementID:       row.ElementID,
		OriginalElement: originalElement,
		Action:          action,
		Position:        ownmap.Position{Lat: row.Lat, Lon: row.Lon},
		CreatedAt:       time.Unix(0, row.CreatedAtMs*int64(time.Millisecond)).UTC(),
		State:           row.State,
	}, nil
}

const editColumns = `id, edit_type, element_type, element_id, original_element, action, lat, lon, created_at_ms, state`

func (s *SQLEditStore) Add(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error {
	if edit.Action == nil {
		return errorsx.Errorf("edit has no action")
	}

	actionBytes, err := ownmapedits.MarshalAction(edit.Action)
	if err != nil {
		return err
	}

	var originalElementBytes []byte
	if edit.OriginalElement != nil {
		originalElementBytes, err = ownmapedits.MarshalElement(edit.OriginalElement)
		if err != nil {
			return err
		}
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return errorsx.Wrap(txErr)
	}
	defer tx.Rollback()

	var lastPlaceholderID int64
	txErr = tx.GetContext(ctx, &lastPlaceholderID, `SELECT COALESCE(MIN(element_id), 0) FROM edit_reserved_ids`)
	if txErr != nil {
		return errorsx.Wrap(txErr)
	}

	createdAt := edit.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.nowFunc()
	}

	// sets the element id of creations, so must come before the edit is inserted
	reserved := ownmapedits.ReservePlaceholderIDs(edit, lastPlaceholderID)

	var editID int64
	txErr = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO edits (edit_type, element_type, element_id, original_element, action, lat, lon, created_at_ms, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		edit.Type,
		edit.ElementType,
		edit.ElementID,
		originalElementBytes,
		actionBytes,
		edit.Position.Lat,
		edit.Position.Lon,
		createdAt.UnixNano()/int64(time.Millisecond),
		ownmapedits.SyncStatePending,
	).Scan(&editID)
	if txErr != nil {
		return errorsx.Wrap(txErr)
	}

	for _, key := range reserved {
		_, txErr = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO edit_reserved_ids (edit_id, element_type, element_id) VALUES (?, ?, ?)`),
			editID, key.Type, key.ID)
		if txErr != nil {
			return errorsx.Wrap(txErr, "editID", editID)
		}
	}

	txErr = tx.Commit()
	if txErr != nil {
		return errorsx.Wrap(txErr)
	}

	edit.ID = editID
	edit.State = ownmapedits.SyncStatePending
	edit.CreatedAt = createdAt

	return nil
}

func (s *SQLEditStore) GetOldestPending(ctx context.Context) (*ownmapedits.Edit, errorsx.Error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	row := new(editRow)
	err = tx.GetContext(ctx, row, tx.Rebind(`
		SELECT `+editColumns+`
		FROM edits
		WHERE state = ?
		ORDER BY id
		LIMIT 1`), ownmapedits.SyncStatePending)
	if err != nil {
		if err == sql.ErrNoRows {
			// all edits are synced
			return nil, nil
		}
		return nil, errorsx.Wrap(err)
	}

	return row.toEdit()
}

func (s *SQLEditStore) markTerminal(ctx context.Context, tx *sqlx.Tx, edit *ownmapedits.Edit, state ownmapedits.SyncState) errorsx.Error {
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE edits SET state = ? WHERE id = ? AND state = ?`),
		state, edit.ID, ownmapedits.SyncStatePending)
	if err != nil {
		return errorsx.Wrap(err, "editID", edit.ID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errorsx.Wrap(err, "editID", edit.ID)
	}

	if rowsAffected == 0 {
		var currentState ownmapedits.SyncState
		err = tx.GetContext(ctx, &currentState, tx.Rebind(`SELECT state FROM edits WHERE id = ?`), edit.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return errorsx.Wrap(errorsx.ObjectNotFound, "editID", edit.ID)
			}
			return errorsx.Wrap(err, "editID", edit.ID)
		}
		return errorsx.Errorf("edit %d is already %s", edit.ID, currentState)
	}

	edit.State = state
	return nil
}

func (s *SQLEditStore) MarkSynced(ctx context.Context, edit *ownmapedits.Edit, idUpdates []ownmapedits.ElementIDUpdate) errorsx.Error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	// state is only set on the edit once committed
	editCopy := *edit
	errx := s.markTerminal(ctx, tx, &editCopy, ownmapedits.SyncStateSynced)
	if errx != nil {
		return errx
	}

	for _, idUpdate := range idUpdates {
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO element_id_updates (element_type, old_id, new_id) VALUES (?, ?, ?)`),
			idUpdate.ElementType, idUpdate.OldID, idUpdate.NewID)
		if err != nil {
			return errorsx.Wrap(err, "editID", edit.ID)
		}
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	edit.State = editCopy.State
	return nil
}

func (s *SQLEditStore) MarkSyncFailed(ctx context.Context, edit *ownmapedits.Edit) errorsx.Error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	editCopy := *edit
	errx := s.markTerminal(ctx, tx, &editCopy, ownmapedits.SyncStateSyncFailed)
	if errx != nil {
		return errx
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	edit.State = editCopy.State
	return nil
}

type elementKeyRow struct {
	ElementType ownmap.ObjectType `db:"element_type"`
	ElementID   int64             `db:"element_id"`
}

type idUpdateRow struct {
	ElementType ownmap.ObjectType `db:"element_type"`
	OldID       int64             `db:"old_id"`
	NewID       int64             `db:"new_id"`
}

func (s *SQLEditStore) GetIDProvider(ctx context.Context, editID int64) (*ownmapedits.IDProvider, errorsx.Error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	var editCount int
	err = tx.GetContext(ctx, &editCount, tx.Rebind(`SELECT COUNT(*) FROM edits WHERE id = ?`), editID)
	if err != nil {
		return nil, errorsx.Wrap(err, "editID", editID)
	}
	if editCount == 0 {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "editID", editID)
	}

	var reservedRows []*elementKeyRow
	err = tx.SelectContext(ctx, &reservedRows, tx.Rebind(`
		SELECT element_type, element_id
		FROM edit_reserved_ids
		WHERE edit_id = ?
		ORDER BY element_id DESC`), editID)
	if err != nil {
		return nil, errorsx.Wrap(err, "editID", editID)
	}

	var idUpdateRows []*idUpdateRow
	err = tx.SelectContext(ctx, &idUpdateRows, `SELECT element_type, old_id, new_id FROM element_id_updates`)
	if err != nil {
		return nil, errorsx.Wrap(err, "editID", editID)
	}

	var reserved []ownmap.ElementKey
	for _, row := range reservedRows {
		reserved = append(reserved, ownmap.ElementKey{Type: row.ElementType, ID: row.ElementID})
	}

	resolved := make(map[ownmap.ElementKey]int64)
	for _, row := range idUpdateRows {
		resolved[ownmap.ElementKey{Type: row.ElementType, ID: row.OldID}] = row.NewID
	}

	return ownmapedits.NewIDProvider(reserved, resolved), nil
}

func (s *SQLEditStore) GetAll(ctx context.Context) ([]*ownmapedits.Edit, errorsx.Error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	var rows []*editRow
	err = tx.SelectContext(ctx, &rows, `SELECT `+editColumns+` FROM edits ORDER BY id`)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var edits []*ownmapedits.Edit
	for _, row := range rows {
		edit, err := row.toEdit()
		if err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}

	return edits, nil
}
