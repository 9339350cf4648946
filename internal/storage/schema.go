package storage

const schemaSQL = `
-- One row per finished crawl
-- status: completed (frontier drained), cancelled (stopped early), aborted (fatal error)
CREATE TABLE IF NOT EXISTS crawls (
    id TEXT PRIMARY KEY NOT NULL,
    seed TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('completed', 'cancelled', 'aborted')),
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    sites_seen INTEGER NOT NULL DEFAULT 0,
    sites_crawled INTEGER NOT NULL DEFAULT 0,
    edge_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);

-- Every site seen by a crawl
-- seen_order is the discovery order, graph_order is NULL until the site got a graph entry
CREATE TABLE IF NOT EXISTS sites (
    crawl_id TEXT NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
    site TEXT NOT NULL,
    seen_order INTEGER NOT NULL,
    graph_order INTEGER,
    PRIMARY KEY (crawl_id, site)
);

CREATE INDEX IF NOT EXISTS idx_sites_graph ON sites(crawl_id, graph_order) WHERE graph_order IS NOT NULL;

-- Directed site links, position keeps the export order
CREATE TABLE IF NOT EXISTS edges (
    crawl_id TEXT NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (crawl_id, source, target)
);

CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(crawl_id, target);

-- Crawl meta table stores per-crawl settings as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    crawl_id TEXT NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (crawl_id, key)
);
`
