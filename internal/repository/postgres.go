package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rentsearch/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Table layout:
//
//	listings(id bigserial, title text, address text, price numeric, bedroom int,
//	         bathroom int, description text, amenities jsonb, rental_terms jsonb,
//	         source text, embedding vector, created_at timestamptz)
const listingColumns = `id, title, address, price, bedroom, bathroom, description,
	amenities, rental_terms, source, embedding, created_at`

// Rows missing a field ranking depends on are never returned
const eligibleClause = `address IS NOT NULL AND btrim(address) <> ''
	AND description IS NOT NULL AND btrim(description) <> ''
	AND price IS NOT NULL AND price >= 0`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresRepository{
		db:     db,
		logger: slog.Default().With("component", "postgres"),
	}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Count returns the number of eligible listings
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM listings WHERE `+eligibleClause); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// listingRow mirrors a listings row; every column may be NULL.
// jsonb columns stay raw so one malformed document cannot fail a whole scan.
type listingRow struct {
	ID          int64            `db:"id"`
	Title       sql.NullString   `db:"title"`
	Address     sql.NullString   `db:"address"`
	Price       sql.NullFloat64  `db:"price"`
	Bedroom     sql.NullInt64    `db:"bedroom"`
	Bathroom    sql.NullInt64    `db:"bathroom"`
	Description sql.NullString   `db:"description"`
	Amenities   []byte           `db:"amenities"`
	RentalTerms []byte           `db:"rental_terms"`
	Source      sql.NullString   `db:"source"`
	Embedding   *pgvector.Vector `db:"embedding"`
	CreatedAt   sql.NullTime     `db:"created_at"`
}

// toListing converts the row, dropping jsonb fields that do not decode
func (row *listingRow) toListing(logger *slog.Logger) model.Listing {
	l := model.Listing{
		ID:          row.ID,
		Title:       row.Title.String,
		Address:     row.Address.String,
		Price:       row.Price.Float64,
		Bedroom:     int(row.Bedroom.Int64),
		Bathroom:    int(row.Bathroom.Int64),
		Description: row.Description.String,
		Source:      model.ListingSource(row.Source.String),
		CreatedAt:   row.CreatedAt.Time,
	}
	if len(row.Amenities) > 0 {
		if err := json.Unmarshal(row.Amenities, &l.Amenities); err != nil {
			logger.Debug("dropping malformed amenities", "id", row.ID, "err", err)
			l.Amenities = nil
		}
	}
	if len(row.RentalTerms) > 0 {
		if err := json.Unmarshal(row.RentalTerms, &l.RentalTerms); err != nil {
			logger.Debug("dropping malformed rental terms", "id", row.ID, "err", err)
			l.RentalTerms = nil
		}
	}
	if row.Embedding != nil {
		l.Embedding = row.Embedding.Slice()
	}
	return l
}

// buildRetrieveQuery renders the candidate query for q
func buildRetrieveQuery(q model.ParsedQuery, limit int) (string, []any) {
	where := []string{eligibleClause}
	var args []any

	if q.Location != nil {
		args = append(args, "%"+escapeLike(*q.Location)+"%")
		where = append(where, fmt.Sprintf(`address ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if q.MaxPrice != nil {
		args = append(args, *q.MaxPrice)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}

	args = append(args, normalizeLimit(limit))
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY created_at DESC NULLS LAST, id LIMIT $%d`,
		listingColumns, strings.Join(where, " AND "), len(args))
	return query, args
}

// Retrieve implements ListingStore
func (r *PostgresRepository) Retrieve(ctx context.Context, q model.ParsedQuery, limit int) ([]model.Listing, error) {
	query, args := buildRetrieveQuery(q, limit)

	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	listings := make([]model.Listing, 0, len(rows))
	for i := range rows {
		l := rows[i].toListing(r.logger)
		if err := l.Validate(); err != nil {
			r.logger.Debug("skipping ineligible listing", "id", l.ID, "err", err)
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// GetListingByID retrieves a single listing by its ID
func (r *PostgresRepository) GetListingByID(ctx context.Context, id int64) (*model.Listing, error) {
	var row listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	l := row.toListing(r.logger)
	if err := l.Validate(); err != nil {
		return nil, ErrListingNotFound
	}
	return &l, nil
}

// BatchUpdateEmbeddings stores precomputed vectors for multiple listings
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, []string{fmt.Sprintf("failed to start transaction: %v", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE listings SET embedding = $1 WHERE id = $2`)
	if err != nil {
		return 0, []string{fmt.Sprintf("failed to prepare statement: %v", err)}
	}
	defer stmt.Close()

	for _, item := range items {
		res, err := stmt.ExecContext(ctx, pgvector.NewVector(item.Embedding), item.ListingID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, ErrListingNotFound))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		return 0, append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
	}
	return success, errs
}
