package store

// migration is a single schema change with a monotonically increasing
// version number.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order; the schema_version table records the
// highest applied version.
var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);

			CREATE TABLE IF NOT EXISTS kv_entries (
				namespace  TEXT NOT NULL,
				k          TEXT NOT NULL,
				data       TEXT NOT NULL,
				written_at TIMESTAMP NOT NULL,
				PRIMARY KEY (namespace, k)
			);

			CREATE INDEX IF NOT EXISTS idx_kv_namespace
				ON kv_entries(namespace);

			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}
