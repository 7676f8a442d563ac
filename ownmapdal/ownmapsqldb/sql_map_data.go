package ownmapsqldb

import (
	"context"
	"database/sql"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jmoiron/sqlx"
)

var _ ownmapdal.MapDataCache = &SQLMapData{}

// SQLMapData is the local copy of map data. Elements are stored as encoded blobs,
// with join tables to find the parents of a node.
type SQLMapData struct {
	db *sqlx.DB
}

func NewSQLMapData(db *sqlx.DB) *SQLMapData {
	return &SQLMapData{db}
}

type elementDataRow struct {
	Data []byte `db:"data"`
}

func elementsFromRows(rows []*elementDataRow) ([]ownmap.Element, errorsx.Error) {
	var elements []ownmap.Element
	for _, row := range rows {
		element, err := ownmapedits.UnmarshalElement(row.Data)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	return elements, nil
}

func (m *SQLMapData) Put(ctx context.Context, elements ...ownmap.Element) errorsx.Error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	errx := putElements(ctx, tx, elements)
	if errx != nil {
		return errx
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

func putElements(ctx context.Context, tx *sqlx.Tx, elements []ownmap.Element) errorsx.Error {
	for _, element := range elements {
		key := element.ElementKey()

		data, errx := ownmapedits.MarshalElement(element)
		if errx != nil {
			return errx
		}

		errx = deleteParentLinks(ctx, tx, key)
		if errx != nil {
			return errx
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO elements (element_type, element_id, version, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (element_type, element_id) DO UPDATE SET version = excluded.version, data = excluded.data`),
			key.Type, key.ID, element.GetVersion(), data)
		if err != nil {
			return errorsx.Wrap(err, "element", key.String())
		}

		switch e := element.(type) {
		case *ownmap.Way:
			for _, nodeID := range e.NodeIDs {
				_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO way_nodes (way_id, node_id) VALUES (?, ?)`), e.ID, nodeID)
				if err != nil {
					return errorsx.Wrap(err, "element", key.String())
				}
			}
		case *ownmap.Relation:
			for _, member := range e.Members {
				_, err = tx.ExecContext(ctx, tx.Rebind(`
					INSERT INTO relation_members (relation_id, member_type, member_id) VALUES (?, ?, ?)`),
					e.ID, member.Type, member.Ref)
				if err != nil {
					return errorsx.Wrap(err, "element", key.String())
				}
			}
		}
	}

	return nil
}

// deleteParentLinks removes the way node and relation member rows owned by the element
func deleteParentLinks(ctx context.Context, tx *sqlx.Tx, key ownmap.ElementKey) errorsx.Error {
	var query string
	switch key.Type {
	case ownmap.ObjectTypeWay:
		query = `DELETE FROM way_nodes WHERE way_id = ?`
	case ownmap.ObjectTypeRelation:
		query = `DELETE FROM relation_members WHERE relation_id = ?`
	default:
		return nil
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(query), key.ID)
	if err != nil {
		return errorsx.Wrap(err, "element", key.String())
	}
	return nil
}

func deleteElement(ctx context.Context, tx *sqlx.Tx, key ownmap.ElementKey) errorsx.Error {
	errx := deleteParentLinks(ctx, tx, key)
	if errx != nil {
		return errx
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM elements WHERE element_type = ? AND element_id = ?`), key.Type, key.ID)
	if err != nil {
		return errorsx.Wrap(err, "element", key.String())
	}
	return nil
}

func (m *SQLMapData) GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	row := new(elementDataRow)
	err = tx.GetContext(ctx, row, tx.Rebind(`SELECT data FROM elements WHERE element_type = ? AND element_id = ?`), key.Type, key.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errorsx.Wrap(errorsx.ObjectNotFound, "element", key.String())
		}
		return nil, errorsx.Wrap(err, "element", key.String())
	}

	return ownmapedits.UnmarshalElement(row.Data)
}

func getWaysForNode(ctx context.Context, tx *sqlx.Tx, nodeID int64) ([]ownmap.Element, errorsx.Error) {
	var rows []*elementDataRow
	err := tx.SelectContext(ctx, &rows, tx.Rebind(`
		SELECT data
		FROM elements
		WHERE element_type = ? AND element_id IN (SELECT way_id FROM way_nodes WHERE node_id = ?)
		ORDER BY element_id`), ownmap.ObjectTypeWay, nodeID)
	if err != nil {
		return nil, errorsx.Wrap(err, "nodeID", nodeID)
	}

	return elementsFromRows(rows)
}

func getRelationsForMember(ctx context.Context, tx *sqlx.Tx, member ownmap.ElementKey) ([]ownmap.Element, errorsx.Error) {
	var rows []*elementDataRow
	err := tx.SelectContext(ctx, &rows, tx.Rebind(`
		SELECT data
		FROM elements
		WHERE element_type = ? AND element_id IN (
			SELECT relation_id FROM relation_members WHERE member_type = ? AND member_id = ?
		)
		ORDER BY element_id`), ownmap.ObjectTypeRelation, member.Type, member.ID)
	if err != nil {
		return nil, errorsx.Wrap(err, "member", member.String())
	}

	return elementsFromRows(rows)
}

func (m *SQLMapData) GetWaysForNode(ctx context.Context, nodeID int64) ([]*ownmap.Way, errorsx.Error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	elements, errx := getWaysForNode(ctx, tx, nodeID)
	if errx != nil {
		return nil, errx
	}

	var ways []*ownmap.Way
	for _, element := range elements {
		ways = append(ways, element.(*ownmap.Way))
	}
	return ways, nil
}

func (m *SQLMapData) GetRelationsForNode(ctx context.Context, nodeID int64) ([]*ownmap.Relation, errorsx.Error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer tx.Rollback()

	elements, errx := getRelationsForMember(ctx, tx, ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: nodeID})
	if errx != nil {
		return nil, errx
	}

	var relations []*ownmap.Relation
	for _, element := range elements {
		relations = append(relations, element.(*ownmap.Relation))
	}
	return relations, nil
}

func (m *SQLMapData) UpdateAll(ctx context.Context, updates *ownmapedits.MapDataUpdates) errorsx.Error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	for _, idUpdate := range updates.IDUpdates {
		errx := remapElementID(ctx, tx, idUpdate)
		if errx != nil {
			return errx
		}
	}

	for _, key := range updates.Deleted {
		errx := deleteElement(ctx, tx, key)
		if errx != nil {
			return errx
		}
	}

	var toPut []ownmap.Element
	for _, element := range updates.Updated {
		if element.IsDeleted() {
			errx := deleteElement(ctx, tx, element.ElementKey())
			if errx != nil {
				return errx
			}
			continue
		}
		toPut = append(toPut, element)
	}

	errx := putElements(ctx, tx, toPut)
	if errx != nil {
		return errx
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

// remapElementID drops the element stored under its placeholder id, and rewrites the ways and relations referencing it
func remapElementID(ctx context.Context, tx *sqlx.Tx, idUpdate ownmapedits.ElementIDUpdate) errorsx.Error {
	oldKey := ownmap.ElementKey{Type: idUpdate.ElementType, ID: idUpdate.OldID}

	errx := deleteElement(ctx, tx, oldKey)
	if errx != nil {
		return errx
	}

	var parents []ownmap.Element
	if idUpdate.ElementType == ownmap.ObjectTypeNode {
		ways, errx := getWaysForNode(ctx, tx, idUpdate.OldID)
		if errx != nil {
			return errx
		}
		parents = append(parents, ways...)
	}

	relations, errx := getRelationsForMember(ctx, tx, oldKey)
	if errx != nil {
		return errx
	}
	parents = append(parents, relations...)

	for _, parent := range parents {
		idUpdate.ApplyTo(parent)
	}

	return putElements(ctx, tx, parents)
}
