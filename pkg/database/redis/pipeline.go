package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Tx MULTI/EXEC 事务中的命令收集器
type Tx struct {
	ctx  context.Context
	pipe goredis.Pipeliner
	err  error
}

func (t *Tx) Set(key string, value interface{}, expiration time.Duration) *Tx {
	t.pipe.Set(t.ctx, key, value, expiration)
	return t
}

func (t *Tx) Del(keys ...string) *Tx {
	t.pipe.Del(t.ctx, keys...)
	return t
}

func (t *Tx) HSet(key string, values ...interface{}) *Tx {
	t.pipe.HSet(t.ctx, key, values...)
	return t
}

// HSetObject 序列化失败时记录错误，事务不会提交
func (t *Tx) HSetObject(key, field string, value any) *Tx {
	data, err := json.Marshal(value)
	if err != nil {
		if t.err == nil {
			t.err = fmt.Errorf("marshal object %s/%s failed: %w", key, field, err)
		}
		return t
	}
	t.pipe.HSet(t.ctx, key, field, data)
	return t
}

// SetObject 序列化失败时记录错误，事务不会提交
func (t *Tx) SetObject(key string, value any, expiration time.Duration) *Tx {
	data, err := json.Marshal(value)
	if err != nil {
		if t.err == nil {
			t.err = fmt.Errorf("marshal object %s failed: %w", key, err)
		}
		return t
	}
	t.pipe.Set(t.ctx, key, data, expiration)
	return t
}

func (t *Tx) Publish(channel string, message interface{}) *Tx {
	t.pipe.Publish(t.ctx, channel, message)
	return t
}

// TxPipelined 以 MULTI/EXEC 原子提交 fn 收集的命令；fn 返回错误时不提交
func (c *Client) TxPipelined(ctx context.Context, fn func(tx *Tx) error) error {
	pipe := c.rdb.TxPipeline()
	tx := &Tx{ctx: ctx, pipe: pipe}

	if err := fn(tx); err != nil {
		pipe.Discard()
		return err
	}
	if tx.err != nil {
		pipe.Discard()
		return tx.err
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tx exec failed: %w", err)
	}
	return nil
}
