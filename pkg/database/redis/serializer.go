package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetObject 读取 JSON 对象，键不存在时返回 ErrNil
func GetObject[T any](ctx context.Context, c *Client, key string) (*T, error) {
	val, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var obj T
	if err := json.Unmarshal([]byte(val), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object %s failed: %w", key, err)
	}
	return &obj, nil
}

// SetObject 以 JSON 写入对象
func SetObject(ctx context.Context, c *Client, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal object failed: %w", err)
	}
	return c.Set(ctx, key, data, expiration)
}

// HGetObject 读取哈希字段中的 JSON 对象，字段不存在时返回 ErrNil
func HGetObject[T any](ctx context.Context, c *Client, key, field string) (*T, error) {
	val, err := c.HGet(ctx, key, field)
	if err != nil {
		return nil, err
	}

	var obj T
	if err := json.Unmarshal([]byte(val), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object %s/%s failed: %w", key, field, err)
	}
	return &obj, nil
}

// HSetObject 以 JSON 写入哈希字段
func HSetObject(ctx context.Context, c *Client, key, field string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal object failed: %w", err)
	}
	_, err = c.HSet(ctx, key, field, data)
	return err
}

// HGetAllObjects 读取哈希全部字段并逐个反序列化
func HGetAllObjects[T any](ctx context.Context, c *Client, key string) (map[string]*T, error) {
	vals, err := c.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*T, len(vals))
	for field, val := range vals {
		var obj T
		if err := json.Unmarshal([]byte(val), &obj); err != nil {
			return nil, fmt.Errorf("unmarshal object at field %s failed: %w", field, err)
		}
		results[field] = &obj
	}
	return results, nil
}
