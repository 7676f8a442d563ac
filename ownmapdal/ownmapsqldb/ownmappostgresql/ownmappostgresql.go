package ownmappostgresql

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const postgresqlSchema = `
CREATE TABLE IF NOT EXISTS edits (
	id BIGSERIAL PRIMARY KEY,
	edit_type TEXT NOT NULL,
	element_type SMALLINT NOT NULL, -- see ownmap.ObjectType
	element_id BIGINT NOT NULL,
	original_element BYTEA,
	action BYTEA NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	created_at_ms BIGINT NOT NULL,
	state SMALLINT NOT NULL -- see ownmapedits.SyncState
);

CREATE INDEX IF NOT EXISTS edits_state_idx ON edits (state, id);

CREATE TABLE IF NOT EXISTS edit_reserved_ids (
	edit_id BIGINT NOT NULL REFERENCES edits(id),
	element_type SMALLINT NOT NULL,
	element_id BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS edit_reserved_ids_edit_idx ON edit_reserved_ids (edit_id);

CREATE TABLE IF NOT EXISTS element_id_updates (
	element_type SMALLINT NOT NULL,
	old_id BIGINT NOT NULL,
	new_id BIGINT NOT NULL,
	PRIMARY KEY (element_type, old_id)
);

-- map data

CREATE TABLE IF NOT EXISTS elements (
	element_type SMALLINT NOT NULL,
	element_id BIGINT NOT NULL,
	version INTEGER NOT NULL,
	data BYTEA NOT NULL,
	PRIMARY KEY (element_type, element_id)
);

CREATE TABLE IF NOT EXISTS way_nodes (
	way_id BIGINT NOT NULL,
	node_id BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS way_nodes_node_idx ON way_nodes (node_id);
CREATE INDEX IF NOT EXISTS way_nodes_way_idx ON way_nodes (way_id);

CREATE TABLE IF NOT EXISTS relation_members (
	relation_id BIGINT NOT NULL,
	member_type SMALLINT NOT NULL,
	member_id BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS relation_members_member_idx ON relation_members (member_type, member_id);
CREATE INDEX IF NOT EXISTS relation_members_relation_idx ON relation_members (relation_id);

-- cross references and statistics

CREATE TABLE IF NOT EXISTS note_edits (
	id BIGSERIAL PRIMARY KEY,
	element_type SMALLINT NOT NULL,
	element_id BIGINT NOT NULL,
	text TEXT NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS statistics (
	edit_type TEXT NOT NULL,
	region TEXT NOT NULL,
	count BIGINT NOT NULL,
	PRIMARY KEY (edit_type, region)
)`

func Open(connStr string) (*sqlx.DB, errorsx.Error) {
	db, err := sqlx.Open("postgres", "postgresql://"+connStr)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	_, err = db.Exec(postgresqlSchema)
	if err != nil {
		db.Close()
		return nil, errorsx.Wrap(err)
	}

	return db, nil
}
