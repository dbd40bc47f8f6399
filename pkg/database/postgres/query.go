package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Runner 可执行语句的对象，*Client 与 *Tx 均实现
type Runner interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

type timeoutRunner interface {
	queryTimeout() time.Duration
}

func withTimeout(ctx context.Context, r Runner) (context.Context, context.CancelFunc) {
	if t, ok := r.(timeoutRunner); ok && t.queryTimeout() > 0 {
		return context.WithTimeout(ctx, t.queryTimeout())
	}
	return ctx, func() {}
}

func (c *Client) queryTimeout() time.Duration {
	return c.cfg.QueryTimeout
}

// Query 原始查询，调用方负责关闭 rows
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// Exec 执行写操作，返回影响行数
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := withTimeout(ctx, c)
	defer cancel()

	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Get 按列名把唯一一行扫描到 T，无结果时返回 ErrNoRows
func Get[T any](ctx context.Context, r Runner, b squirrel.Sqlizer) (*T, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql failed: %w", err)
	}

	ctx, cancel := withTimeout(ctx, r)
	defer cancel()

	rows, err := r.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("scan row failed: %w", err)
	}
	return row, nil
}

// Select 按列名扫描全部结果
func Select[T any](ctx context.Context, r Runner, b squirrel.Sqlizer) ([]*T, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql failed: %w", err)
	}

	ctx, cancel := withTimeout(ctx, r)
	defer cancel()

	rows, err := r.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("scan rows failed: %w", err)
	}
	return result, nil
}

// ExecBuilder 执行构建好的写语句
func ExecBuilder(ctx context.Context, r Runner, b squirrel.Sqlizer) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql failed: %w", err)
	}
	return r.Exec(ctx, sql, args...)
}
