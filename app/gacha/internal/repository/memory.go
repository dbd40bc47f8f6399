package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// MemoryStore 进程内存储，按 JSON 保存以保持与外部存储相同的编解码行为
type MemoryStore struct {
	mu    sync.RWMutex
	state []byte
	users map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string][]byte)}
}

func (s *MemoryStore) Init(context.Context) error {
	return nil
}

func (s *MemoryStore) GetGachaState(context.Context) (*model.GachaState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return model.NewGachaState(), nil
	}
	state := model.NewGachaState()
	if err := json.Unmarshal(s.state, state); err != nil {
		return nil, fmt.Errorf("failed to decode gacha state: %w", err)
	}
	return state, nil
}

func (s *MemoryStore) SaveGachaState(ctx context.Context, state *model.GachaState) error {
	return s.Commit(ctx, nil, state)
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}
	return &user, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, userID string, user *model.User) error {
	return s.Commit(ctx, map[string]*model.User{userID: user}, nil)
}

func (s *MemoryStore) SaveUsers(ctx context.Context, users map[string]*model.User) error {
	return s.Commit(ctx, users, nil)
}

func (s *MemoryStore) GetAllUsers(context.Context) ([]model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.UserRecord, 0, len(s.users))
	for id, data := range s.users {
		var user model.User
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
		}
		records = append(records, model.UserRecord{UserID: id, User: &user})
	}
	sortRecords(records)
	return records, nil
}

// Commit 先全部编码，成功后一次性替换
func (s *MemoryStore) Commit(_ context.Context, users map[string]*model.User, state *model.GachaState) error {
	encoded := make(map[string][]byte, len(users))
	for id, user := range users {
		if strings.TrimSpace(id) == "" {
			return ErrEmptyUserID
		}
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to encode user %s: %w", id, err)
		}
		encoded[id] = data
	}
	var stateData []byte
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode gacha state: %w", err)
		}
		stateData = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, data := range encoded {
		s.users[id] = data
	}
	if stateData != nil {
		s.state = stateData
	}
	return nil
}

// PutRawUser 直接写入原始 JSON，用于导入旧数据
func (s *MemoryStore) PutRawUser(userID string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = append([]byte(nil), raw...)
}
