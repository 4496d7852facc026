package cache

const schema = `
CREATE TABLE IF NOT EXISTS query_cache (
    key          TEXT PRIMARY KEY,
    location     TEXT NOT NULL,
    window_start DATETIME NOT NULL,
    window_end   DATETIME NOT NULL,
    payload      TEXT NOT NULL,
    created_at   DATETIME NOT NULL,
    expires_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_location ON query_cache(location);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON query_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_cache_created ON query_cache(created_at);
`
