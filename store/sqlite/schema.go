package sqlite

// CurrentVersion is the schema version this build expects. It mirrors
// original_source/src/backend/sqlite.rs's CURRENT_VERSION constant: a
// freshly created store is stamped with it, and FactoryBuilder.Factory
// refuses to open a store whose stamped version is behind it.
const CurrentVersion = 1

// schemaDDL creates every table and index a fresh store needs. Column
// choices follow sqlite.rs's Connection.initialize(): user IDs and
// signatures are stored as raw BLOBs (never base58 inside the database),
// timestamps as signed INTEGER milliseconds, and attachment content keyed
// by its SHA-512 hash in a separate content-addressed table.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS item (
	user_id BLOB NOT NULL,
	signature BLOB NOT NULL,
	unix_utc_ms INTEGER NOT NULL,
	received_utc_ms INTEGER NOT NULL,
	item_bytes BLOB NOT NULL,
	PRIMARY KEY (user_id, signature)
);
CREATE INDEX IF NOT EXISTS item_user_chrono_idx ON item (user_id, unix_utc_ms DESC);
CREATE INDEX IF NOT EXISTS item_chrono_idx ON item (unix_utc_ms DESC);
CREATE INDEX IF NOT EXISTS item_received_idx ON item (received_utc_ms DESC);

CREATE TABLE IF NOT EXISTS server_user (
	user_id BLOB PRIMARY KEY,
	notes TEXT NOT NULL DEFAULT '',
	on_homepage INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS follow (
	source_user_id BLOB NOT NULL,
	followed_user_id BLOB NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source_user_id, followed_user_id)
);
CREATE INDEX IF NOT EXISTS follow_followed_idx ON follow (followed_user_id);

CREATE TABLE IF NOT EXISTS profile (
	user_id BLOB PRIMARY KEY,
	signature BLOB NOT NULL,
	unix_utc_ms INTEGER NOT NULL,
	display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reply (
	from_user_id BLOB NOT NULL,
	from_signature BLOB NOT NULL,
	to_user_id BLOB NOT NULL,
	to_signature BLOB NOT NULL,
	PRIMARY KEY (from_user_id, from_signature)
);
CREATE INDEX IF NOT EXISTS reply_to_idx ON reply (to_user_id, to_signature);

CREATE TABLE IF NOT EXISTS item_attachment (
	user_id BLOB NOT NULL,
	signature BLOB NOT NULL,
	name TEXT NOT NULL,
	hash BLOB NOT NULL,
	size INTEGER NOT NULL,
	PRIMARY KEY (user_id, signature, name)
);
CREATE INDEX IF NOT EXISTS item_attachment_hash_idx ON item_attachment (hash);

CREATE TABLE IF NOT EXISTS store (
	hash BLOB PRIMARY KEY,
	contents BLOB NOT NULL,
	created_utc_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS known_users (
	user_id BLOB PRIMARY KEY
);
`

// upgraders holds schema migrations in order, indexed from version 1. A
// freshly created store skips them all and is stamped directly at
// CurrentVersion; they exist for stores created by an earlier build.
// Empty for now: CurrentVersion is 1, the first shipped schema.
var upgraders = []func(execer) error{}
