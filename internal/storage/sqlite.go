// Package storage keeps finished crawl graphs in a SQLite database so they
// can be listed and exported again later.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"

	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/site"
)

// ErrCrawlNotFound is returned when no crawl has the requested ID
var ErrCrawlNotFound = errors.New("crawl not found")

// Crawl statuses
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusAborted   = "aborted"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Crawl is a finished crawl to be stored.
type Crawl struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshot   *frontier.Snapshot
	// Aborted marks a crawl that ended with a fatal error.
	Aborted bool
	Meta    map[string]string
}

// Status returns the stored status of the crawl.
func (c *Crawl) Status() string {
	switch {
	case c.Aborted:
		return StatusAborted
	case c.Snapshot.Cancelled:
		return StatusCancelled
	default:
		return StatusCompleted
	}
}

// CrawlRecord is the summary row of a stored crawl.
type CrawlRecord struct {
	ID           uuid.UUID
	Seed         site.Site
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	SitesSeen    int
	SitesCrawled int
	EdgeCount    int
}

// SQLiteStorage stores crawl graphs in SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveCrawl stores a crawl with its full graph in a single transaction.
func (s *SQLiteStorage) SaveCrawl(ctx context.Context, c *Crawl) error {
	if c.Snapshot == nil {
		return errors.New("crawl has no snapshot")
	}
	snap := c.Snapshot

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO crawls (
			id, seed, status, started_at, finished_at,
			sites_seen, sites_crawled, edge_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID.String(),
		string(snap.Seed),
		c.Status(),
		formatTime(c.StartedAt),
		formatTime(c.FinishedAt),
		len(snap.Seen),
		len(snap.Edges),
		snap.EdgeCount(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl %s: %w", c.ID, err)
	}

	if err := insertSites(ctx, tx, c.ID, snap); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, c.ID, snap); err != nil {
		return err
	}
	if err := insertMeta(ctx, tx, c.ID, c.Meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl %s: %w", c.ID, err)
	}
	return nil
}

func insertSites(ctx context.Context, tx *sql.Tx, id uuid.UUID, snap *frontier.Snapshot) error {
	graphOrder := make(map[site.Site]int, len(snap.Edges))
	for i, adj := range snap.Edges {
		graphOrder[adj.Source] = i
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sites (crawl_id, site, seen_order, graph_order)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, seen := range snap.Seen {
		var order sql.NullInt64
		if pos, ok := graphOrder[seen]; ok {
			order = sql.NullInt64{Int64: int64(pos), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id.String(), string(seen), i, order); err != nil {
			return fmt.Errorf("failed to insert site %s: %w", seen, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, id uuid.UUID, snap *frontier.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (crawl_id, source, target, position)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	position := 0
	for _, adj := range snap.Edges {
		for _, target := range adj.Targets {
			if _, err := stmt.ExecContext(ctx, id.String(), string(adj.Source), string(target), position); err != nil {
				return fmt.Errorf("failed to insert edge %s -> %s: %w", adj.Source, target, err)
			}
			position++
		}
	}
	return nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, id uuid.UUID, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crawl_meta (crawl_id, key, value) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, key := range slices.Sorted(maps.Keys(meta)) {
		if _, err := stmt.ExecContext(ctx, id.String(), key, meta[key]); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", key, err)
		}
	}
	return nil
}

// GetCrawl returns the summary row of one crawl.
func (s *SQLiteStorage) GetCrawl(ctx context.Context, id uuid.UUID) (*CrawlRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, status, started_at, finished_at,
			sites_seen, sites_crawled, edge_count
		FROM crawls WHERE id = ?
	`, id.String())

	rec, err := scanCrawl(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCrawlNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl %s: %w", id, err)
	}
	return rec, nil
}

// ListCrawls returns every stored crawl, newest first.
func (s *SQLiteStorage) ListCrawls(ctx context.Context) ([]CrawlRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, status, started_at, finished_at,
			sites_seen, sites_crawled, edge_count
		FROM crawls
		ORDER BY started_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []CrawlRecord
	for rows.Next() {
		rec, err := scanCrawl(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// LoadGraph rebuilds the snapshot a crawl was saved from.
func (s *SQLiteStorage) LoadGraph(ctx context.Context, id uuid.UUID) (*frontier.Snapshot, error) {
	rec, err := s.GetCrawl(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := &frontier.Snapshot{
		Seed:      rec.Seed,
		Seen:      make([]site.Site, 0, rec.SitesSeen),
		Edges:     make([]frontier.Adjacency, 0, rec.SitesCrawled),
		Cancelled: rec.Status != StatusCompleted,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT site FROM sites
		WHERE crawl_id = ?
		ORDER BY seen_order
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		snap.Seen = append(snap.Seen, site.Site(name))
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	sources, err := s.graphSources(ctx, id)
	if err != nil {
		return nil, err
	}

	index := make(map[site.Site]int, len(sources))
	for _, src := range sources {
		index[src] = len(snap.Edges)
		snap.Edges = append(snap.Edges, frontier.Adjacency{Source: src})
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT source, target FROM edges
		WHERE crawl_id = ?
		ORDER BY position
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		i, ok := index[site.Site(source)]
		if !ok {
			return nil, fmt.Errorf("edge %s -> %s has no graph entry", source, target)
		}
		snap.Edges[i].Targets = append(snap.Edges[i].Targets, site.Site(target))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	return snap, nil
}

func (s *SQLiteStorage) graphSources(ctx context.Context, id uuid.UUID) ([]site.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site FROM sites
		WHERE crawl_id = ? AND graph_order IS NOT NULL
		ORDER BY graph_order
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load graph entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []site.Site
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan graph entry: %w", err)
		}
		sources = append(sources, site.Site(name))
	}
	return sources, rows.Err()
}

// GetMeta gets a metadata value of a crawl
func (s *SQLiteStorage) GetMeta(ctx context.Context, id uuid.UUID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM crawl_meta WHERE crawl_id = ? AND key = ?",
		id.String(), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// DeleteCrawl removes a crawl and everything stored with it.
func (s *SQLiteStorage) DeleteCrawl(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"edges", "sites", "crawl_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE crawl_id = ?", id.String()); err != nil {
			return fmt.Errorf("failed to delete %s of crawl %s: %w", table, id, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM crawls WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete crawl %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrCrawlNotFound, id)
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCrawl(row scanner) (*CrawlRecord, error) {
	var rec CrawlRecord
	var id, seed, started, finished string
	err := row.Scan(
		&id, &seed, &rec.Status, &started, &finished,
		&rec.SitesSeen, &rec.SitesCrawled, &rec.EdgeCount,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid crawl id %q: %w", id, err)
	}
	rec.Seed = site.Site(seed)
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", started, err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("invalid finish time %q: %w", finished, err)
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
