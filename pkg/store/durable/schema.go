package durable

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the rule vector schema.
const Schema = `
-- Rule vectors table: one row per installed rule.
CREATE TABLE IF NOT EXISTS rule_vectors (
    rule_id    TEXT PRIMARY KEY,
    layer      TEXT NOT NULL,
    family_id  TEXT NOT NULL,
    agent_id   TEXT NOT NULL,
    vector     BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Operational lookups by routing layer and rule family.
CREATE INDEX IF NOT EXISTS idx_rule_vectors_layer ON rule_vectors(layer);
CREATE INDEX IF NOT EXISTS idx_rule_vectors_family ON rule_vectors(family_id);
CREATE INDEX IF NOT EXISTS idx_rule_vectors_agent ON rule_vectors(agent_id);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`
