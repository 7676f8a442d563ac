package ownmapsqlite

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS edits (
	id INTEGER PRIMARY KEY,
	edit_type TEXT NOT NULL,
	element_type INTEGER NOT NULL, -- see ownmap.ObjectType
	element_id INTEGER NOT NULL,
	original_element BLOB,
	action BLOB NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	created_at_ms INTEGER NOT NULL,
	state INTEGER NOT NULL -- see ownmapedits.SyncState
);

CREATE INDEX IF NOT EXISTS edits_state_idx ON edits (state, id);

CREATE TABLE IF NOT EXISTS edit_reserved_ids (
	edit_id INTEGER NOT NULL REFERENCES edits(id),
	element_type INTEGER NOT NULL,
	element_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS edit_reserved_ids_edit_idx ON edit_reserved_ids (edit_id);

CREATE TABLE IF NOT EXISTS element_id_updates (
	element_type INTEGER NOT NULL,
	old_id INTEGER NOT NULL,
	new_id INTEGER NOT NULL,
	PRIMARY KEY (element_type, old_id)
);

-- map data

CREATE TABLE IF NOT EXISTS elements (
	element_type INTEGER NOT NULL,
	element_id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (element_type, element_id)
);

CREATE TABLE IF NOT EXISTS way_nodes (
	way_id INTEGER NOT NULL,
	node_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS way_nodes_node_idx ON way_nodes (node_id);
CREATE INDEX IF NOT EXISTS way_nodes_way_idx ON way_nodes (way_id);

CREATE TABLE IF NOT EXISTS relation_members (
	relation_id INTEGER NOT NULL,
	member_type INTEGER NOT NULL,
	member_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS relation_members_member_idx ON relation_members (member_type, member_id);
CREATE INDEX IF NOT EXISTS relation_members_relation_idx ON relation_members (relation_id);

-- cross references and statistics

CREATE TABLE IF NOT EXISTS note_edits (
	id INTEGER PRIMARY KEY,
	element_type INTEGER NOT NULL,
	element_id INTEGER NOT NULL,
	text TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS statistics (
	edit_type TEXT NOT NULL,
	region TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (edit_type, region)
)`

// Open opens (or creates) a sqlite database file. ":memory:" gives a fresh in-memory database.
func Open(connPath string) (*sqlx.DB, errorsx.Error) {
	db, err := sqlx.Open("sqlite3", connPath)
	if err != nil {
		return nil, errorsx.Wrap(err, "connPath", connPath)
	}

	// every connection to ":memory:" is a different database, and sqlite only allows one writer anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteSchema)
	if err != nil {
		db.Close()
		return nil, errorsx.Wrap(err, "connPath", connPath)
	}

	return db, nil
}
