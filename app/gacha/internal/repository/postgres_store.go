package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

const (
	stateTable = "gacha_state"
	usersTable = "gacha_users"

	// 全局状态只有一行
	stateRowID = 1
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gacha_state (
		id         SMALLINT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS gacha_users (
		user_id    TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var psql = postgres.QueryBuilder

type dataRow struct {
	Data []byte `db:"data"`
}

type userRow struct {
	UserID string `db:"user_id"`
	Data   []byte `db:"data"`
}

// PostgresStore JSONB 两表存储，多用户写入在同一事务中完成
type PostgresStore struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.GachaMetrics
	now     func() time.Time
}

func NewPostgresStore(db *postgres.Client, l logger.Logger, m *metrics.GachaMetrics) *PostgresStore {
	return &PostgresStore{
		db:      db,
		logger:  l.Named("repository.postgres"),
		metrics: m,
		now:     time.Now,
	}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init postgres schema: %w", err)
		}
	}
	s.logger.Info("postgres schema ready", "tables", []string{stateTable, usersTable})
	return nil
}

func (s *PostgresStore) GetGachaState(ctx context.Context) (*model.GachaState, error) {
	state := model.NewGachaState()
	err := observe(s.metrics, "get_state", func() error {
		row, err := postgres.Get[dataRow](ctx, s.db, selectStateQuery())
		if errors.Is(err, postgres.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(row.Data, state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gacha state: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) SaveGachaState(ctx context.Context, state *model.GachaState) error {
	return s.Commit(ctx, nil, state)
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user *model.User
	err := observe(s.metrics, "get_user", func() error {
		row, err := postgres.Get[dataRow](ctx, s.db, selectUserQuery(userID))
		if errors.Is(err, postgres.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		user = &model.User{}
		return json.Unmarshal(row.Data, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, userID string, user *model.User) error {
	return s.Commit(ctx, map[string]*model.User{userID: user}, nil)
}

func (s *PostgresStore) SaveUsers(ctx context.Context, users map[string]*model.User) error {
	return s.Commit(ctx, users, nil)
}

func (s *PostgresStore) GetAllUsers(ctx context.Context) ([]model.UserRecord, error) {
	var records []model.UserRecord
	err := observe(s.metrics, "get_all_users", func() error {
		rows, err := postgres.Select[userRow](ctx, s.db, psql.Select("user_id", "data").From(usersTable).OrderBy("user_id"))
		if err != nil {
			return err
		}
		records = make([]model.UserRecord, 0, len(rows))
		for _, row := range rows {
			var user model.User
			if err := json.Unmarshal(row.Data, &user); err != nil {
				return fmt.Errorf("failed to decode user %s: %w", row.UserID, err)
			}
			records = append(records, model.UserRecord{UserID: row.UserID, User: &user})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return records, nil
}

// Commit 在一个事务中 upsert 用户与状态
func (s *PostgresStore) Commit(ctx context.Context, users map[string]*model.User, state *model.GachaState) error {
	now := s.now()
	queries := make([]squirrel.Sqlizer, 0, len(users)+1)
	for _, id := range sortedUserIDs(users) {
		if id == "" {
			return ErrEmptyUserID
		}
		data, err := json.Marshal(users[id])
		if err != nil {
			return fmt.Errorf("failed to encode user %s: %w", id, err)
		}
		queries = append(queries, upsertUserQuery(id, data, now))
	}
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode gacha state: %w", err)
		}
		queries = append(queries, upsertStateQuery(data, now))
	}
	if len(queries) == 0 {
		return nil
	}

	err := observe(s.metrics, "commit", func() error {
		return s.db.WithTx(ctx, func(tx *postgres.Tx) error {
			for _, q := range queries {
				if _, err := postgres.ExecBuilder(ctx, tx, q); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("postgres commit failed",
			"user_count", len(users),
			"with_state", state != nil,
			"error", err,
		)
		return fmt.Errorf("failed to commit gacha data: %w", err)
	}
	return nil
}

func selectStateQuery() squirrel.SelectBuilder {
	return psql.Select("data").From(stateTable).Where(squirrel.Eq{"id": stateRowID})
}

func selectUserQuery(userID string) squirrel.SelectBuilder {
	return psql.Select("data").From(usersTable).Where(squirrel.Eq{"user_id": userID})
}

func upsertUserQuery(userID string, data []byte, now time.Time) squirrel.InsertBuilder {
	return psql.Insert(usersTable).
		Columns("user_id", "data", "updated_at").
		Values(userID, json.RawMessage(data), now).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at")
}

func upsertStateQuery(data []byte, now time.Time) squirrel.InsertBuilder {
	return psql.Insert(stateTable).
		Columns("id", "data", "updated_at").
		Values(stateRowID, json.RawMessage(data), now).
		Suffix("ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at")
}
