package store

// Schema is the full set of DDL statements for the persisted layout of §6.3.
// Each statement is idempotent (IF NOT EXISTS) so it can run on every boot,
// mirroring the schema-const style the rest of the pack uses for its own
// table definitions.
const Schema = `
CREATE TABLE IF NOT EXISTS room (
	id                         UUID PRIMARY KEY,
	audience                   TEXT NOT NULL,
	classroom_id               UUID NOT NULL,
	opened_at                  TIMESTAMPTZ NOT NULL,
	closed_at                  TIMESTAMPTZ,
	tags                       JSONB NOT NULL DEFAULT '{}',
	preserve_history           BOOLEAN NOT NULL DEFAULT TRUE,
	source_room_id             UUID,
	locked_types               JSONB NOT NULL DEFAULT '{}',
	whiteboard_access          JSONB NOT NULL DEFAULT '{}',
	validate_whiteboard_access BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS event (
	id                   UUID PRIMARY KEY,
	room_id              UUID NOT NULL REFERENCES room (id),
	kind                 TEXT NOT NULL,
	"set"                TEXT NOT NULL,
	label                TEXT,
	attribute            TEXT,
	data                 JSONB,
	binary_data          BYTEA,
	occurred_at          BIGINT NOT NULL,
	created_by           TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at           TIMESTAMPTZ,
	original_occurred_at BIGINT NOT NULL,
	original_created_by  TEXT NOT NULL,
	removed              BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS event_room_occurred_at_idx ON event (room_id, occurred_at, created_at);
CREATE INDEX IF NOT EXISTS event_state_idx ON event (room_id, "set", label, occurred_at DESC);

CREATE TABLE IF NOT EXISTS edition (
	id               UUID PRIMARY KEY,
	source_room_id   UUID NOT NULL REFERENCES room (id),
	created_by       TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS change (
	id           UUID PRIMARY KEY,
	edition_id   UUID NOT NULL REFERENCES edition (id) ON DELETE CASCADE,
	kind         TEXT NOT NULL,
	event_id     UUID,
	event_kind   TEXT,
	"set"        TEXT,
	label        TEXT,
	data         JSONB,
	occurred_at  BIGINT,
	created_by   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS change_edition_created_at_idx ON change (edition_id, created_at);

CREATE TABLE IF NOT EXISTS agent (
	agent_id   TEXT NOT NULL,
	room_id    UUID NOT NULL REFERENCES room (id),
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (agent_id, room_id)
);

CREATE TABLE IF NOT EXISTS room_ban (
	account_id TEXT NOT NULL,
	room_id    UUID NOT NULL REFERENCES room (id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_id, room_id)
);
`
