package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trydiscs/inventory-crawler/internal/models"
)

// Store persists inventory records in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MaxConnLife time.Duration
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: slog.Default().With("component", "store"),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// DeleteRecords purges a retailer's prior records before a fresh crawl.
func (s *Store) DeleteRecords(ctx context.Context, retailerKey string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inventory_listings WHERE retailer = $1`, retailerKey)
	if err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", retailerKey, err)
	}

	s.logger.Info("purged retailer records", "retailer", retailerKey, "deleted", tag.RowsAffected())
	return nil
}

// InsertRecords bulk-appends discovered records via COPY.
func (s *Store) InsertRecords(ctx context.Context, records []models.InventoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{
			uuid.New(), r.Listing, r.DetailsURL, r.ImgURL, r.Price,
			r.Model, r.Type, r.Manufacturer, r.Retailer,
		})
	}

	copied, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"inventory_listings"},
		[]string{"id", "listing", "details_url", "img_src", "price", "model", "type", "manufacturer", "retailer"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	s.logger.Info("inserted records", "count", copied)
	return nil
}
