package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"bedrock/internal/model"
)

// ClickHouseConfig is the configuration for the ClickHouse warehouse.
type ClickHouseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
	Secure   bool
	// DialTimeout bounds connection setup.
	DialTimeout time.Duration
}

// Addr returns host:port.
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate asserts identifiers are safe to interpolate into DDL.
func (c ClickHouseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("clickhouse host is required")
	}
	if !identRe.MatchString(c.Database) {
		return fmt.Errorf("invalid clickhouse database name %q", c.Database)
	}
	if !identRe.MatchString(c.Table) {
		return fmt.Errorf("invalid clickhouse table name %q", c.Table)
	}
	return nil
}

// ClickHouse implements Warehouse over the native protocol.
type ClickHouse struct {
	conn   driver.Conn
	table  Table
	logger *slog.Logger
}

var _ Warehouse = (*ClickHouse)(nil)

// OpenClickHouse connects and pings the server.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig, logger *slog.Logger) (*ClickHouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.Secure {
		opts.TLS = tlsConfig()
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse %s: %w", cfg.Addr(), err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse %s: %w", cfg.Addr(), err)
	}
	return &ClickHouse{
		conn:   conn,
		table:  Table{Database: cfg.Database, Name: cfg.Table},
		logger: logger,
	}, nil
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}

func (c *ClickHouse) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createTableDDL(c.table)); err != nil {
		return fmt.Errorf("create table %s: %w", c.table.Qualified(), err)
	}
	c.logger.Debug("table is ready", "table", c.table.Qualified())
	return nil
}

func (c *ClickHouse) ResetStaging(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createStagingDDL(c.table)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	if err := c.conn.Exec(ctx, truncateDDL(c.table.Staging())); err != nil {
		return fmt.Errorf("truncate staging table: %w", err)
	}
	return nil
}

// Stage appends rows to the staging table in one native batch.
// AppendStruct maps struct fields to columns by their ch tag names.
func (c *ClickHouse) Stage(ctx context.Context, rows []model.Bar) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, insertSQL(c.table.Staging()))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := range rows {
		if err := batch.AppendStruct(&rows[i]); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch of %d rows: %w", len(rows), err)
	}
	return nil
}

// Promote swaps in the partitions as the server computed them for the staged rows,
// so the ids always match what REPLACE PARTITION expects.
func (c *ClickHouse) Promote(ctx context.Context) ([]string, error) {
	partitions, err := c.stagedPartitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range partitions {
		if err := c.conn.Exec(ctx, replacePartitionSQL(c.table, id)); err != nil {
			return nil, fmt.Errorf("replace partition %s: %w", id, err)
		}
		c.logger.Debug("partition replaced", "table", c.table.Qualified(), "partition", id)
	}
	return partitions, nil
}

func (c *ClickHouse) stagedPartitions(ctx context.Context) ([]string, error) {
	rows, err := c.conn.Query(ctx, stagedPartitionsSQL(c.table))
	if err != nil {
		return nil, fmt.Errorf("list staged partitions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan staged partition: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list staged partitions: %w", err)
	}
	return ids, nil
}

func (c *ClickHouse) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := c.conn.QueryRow(ctx, countSQL(c.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}
