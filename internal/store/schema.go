package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id           TEXT PRIMARY KEY,
    project_id           TEXT NOT NULL DEFAULT '',
    timestamp_ms         INTEGER NOT NULL,
    input_tokens         INTEGER NOT NULL,
    output_tokens        INTEGER NOT NULL,
    total_tokens         INTEGER NOT NULL,
    reasoning_tokens     INTEGER NOT NULL,
    cache_read_tokens    INTEGER NOT NULL,
    cache_write_tokens   INTEGER NOT NULL,
    cost                 REAL NOT NULL,
    tree_cost            REAL NOT NULL,
    recorded_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_models (
    session_id           TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    model                TEXT NOT NULL,
    input_tokens         INTEGER NOT NULL,
    output_tokens        INTEGER NOT NULL,
    total_tokens         INTEGER NOT NULL,
    reasoning_tokens     INTEGER NOT NULL,
    cache_read_tokens    INTEGER NOT NULL,
    cache_write_tokens   INTEGER NOT NULL,
    PRIMARY KEY (session_id, model)
);

CREATE TABLE IF NOT EXISTS toasts (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id           TEXT NOT NULL,
    message              TEXT NOT NULL,
    variant              TEXT NOT NULL,
    cost                 REAL NOT NULL,
    shown_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_toasts_session ON toasts(session_id);
`
