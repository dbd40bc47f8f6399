package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider/mocks"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Init()
}

// envelope 统一响应，data 延迟解码
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) details(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(e.Data, &out))
	return out
}

// testPool 排名间隔 200：anilist_1 神话，2-5 传说，6-12 史诗，13-30 稀有，其余普通
func testPool() []model.Character {
	out := make([]model.Character, 0, 40)
	for i := 1; i <= 40; i++ {
		out = append(out, model.Character{
			ID:             fmt.Sprintf("anilist_%d", i),
			Name:           fmt.Sprintf("Hero %d", i),
			Anime:          fmt.Sprintf("Show %d", i%5),
			Favorites:      int64(100000 - i*100),
			PopularityRank: int64(i * 200),
			Source:         "anilist",
		})
	}
	return out
}

type testServer struct {
	router *gin.Engine
	jwt    *security.JWTManager
	store  *repository.MemoryStore
	engine *service.Engine
	cfg    *gachaconfig.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalog(ctrl)
	catalog.EXPECT().FetchPool(gomock.Any(), gomock.Any()).Return(testPool(), nil).AnyTimes()
	catalog.EXPECT().FetchTopRanked(gomock.Any(), gomock.Any()).Return(testPool()[:3], nil).AnyTimes()

	cfg := gachaconfig.DefaultConfig()
	cfg.BoardSize = 10
	cfg.PoolSize = 40
	cfg.BoardPrefetchMinutes = 0
	cfg.AdminUserIDs = []string{"admin"}

	store := repository.NewMemoryStore()
	engine := service.NewEngine(gachaconfig.NewStatic(cfg), store, catalog, logger.NewNoop(),
		service.WithRand(rand.New(rand.NewSource(3))),
	)
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, engine.Bootstrap(context.Background()))
	engine.Wait()

	jm, err := security.NewJWTManager(&security.JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(&middleware.AuthConfig{JWTManager: jm}))
	NewGachaHandler(engine, logger.NewNoop()).Register(api)

	return &testServer{router: r, jwt: jm, store: store, engine: engine, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := s.jwt.GenerateToken(&security.Claims{UserID: userID, Username: userID})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// seed 直接写入用户，角色快照由引擎从角色池补全
func (s *testServer) seed(t *testing.T, userID string, holdings map[string]int) {
	t.Helper()
	inv := model.Inventory{}
	for id, count := range holdings {
		inv[id] = &model.InventoryEntry{Count: count}
	}
	user := &model.User{
		Username:    userID,
		DisplayName: userID,
		LastReset:   s.cfg.DayKey(time.Now()),
		RollsLeft:   s.cfg.RollsPerDay,
		Inventory:   inv,
	}
	require.NoError(t, s.store.SaveUser(context.Background(), userID, user))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		kind   model.ErrorKind
		code   int
		status int
	}{
		{model.KindValidation, weberrors.CodeInvalidParams, http.StatusBadRequest},
		{model.KindNotFound, weberrors.CodeNotFound, http.StatusNotFound},
		{model.KindAuthorization, weberrors.CodeForbidden, http.StatusForbidden},
		{model.KindConflict, weberrors.CodeConflict, http.StatusConflict},
		{model.KindStaleState, weberrors.CodeStaleState, http.StatusConflict},
		{model.KindInsufficientResource, weberrors.CodeInsufficient, http.StatusUnprocessableEntity},
		{model.KindCooldown, weberrors.CodeCooldown, http.StatusTooManyRequests},
		{model.KindProviderDegraded, weberrors.CodeExternalError, http.StatusBadGateway},
		{model.KindInternal, weberrors.CodeInternalError, http.StatusInternalServerError},
		{model.ErrorKind("unknown"), weberrors.CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.code, errorCode(tt.kind))
			assert.Equal(t, tt.status, weberrors.CodeToStatus(errorCode(tt.kind)))
		})
	}
}

func TestUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, weberrors.CodeUnAuthorized, resp.Code)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(t, http.MethodGet, "/api/v1/me", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, weberrors.CodeOK, resp.Code)

	var profile service.Profile
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, "alice", profile.UserID)
	assert.Equal(t, s.cfg.RollsPerDay, profile.User.RollsLeft)
	assert.Equal(t, s.cfg.PityRules(), profile.Pity)
}

func TestRoll(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/me/rolls", "alice", RollRequest{Count: 3})
	require.Equal(t, http.StatusOK, code)
	var result service.RollResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 3, result.Executed)
	assert.Len(t, result.Draws, 3)
	assert.Equal(t, s.cfg.RollsPerDay-3, result.User.RollsLeft)

	// 无请求体按单抽处理
	code, resp = s.do(t, http.MethodPost, "/api/v1/me/rolls", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.Executed)

	code, resp = s.do(t, http.MethodPost, "/api/v1/me/rolls", "alice", RollRequest{Count: 101})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, weberrors.CodeInvalidParams, resp.Code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/me/rolls", "alice", RollRequest{Count: 100})
	require.Equal(t, http.StatusOK, code)

	code, resp = s.do(t, http.MethodPost, "/api/v1/me/rolls", "alice", RollRequest{Count: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, weberrors.CodeInsufficient, resp.Code)
	details := resp.details(t)
	assert.EqualValues(t, 0, details["rolls_left"])
	assert.EqualValues(t, 1, details["requested"])
}

func TestClaimDailyCooldown(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/me/daily", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var claim service.DailyClaim
	require.NoError(t, json.Unmarshal(resp.Data, &claim))
	assert.Equal(t, s.cfg.DailyRollBonus, claim.Bonus)

	code, resp = s.do(t, http.MethodPost, "/api/v1/me/daily", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, weberrors.CodeCooldown, resp.Code)
	details := resp.details(t)
	assert.Contains(t, details, "ms_remaining")
	assert.Contains(t, details, "next_claim_at")
}

func TestBoardEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/api/v1/board", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var board BoardResponse
	require.NoError(t, json.Unmarshal(resp.Data, &board))
	assert.Len(t, board.Characters, 10)
	assert.True(t, board.Refresh.HasBoard)
	assert.False(t, board.Refresh.IsReady)

	code, resp = s.do(t, http.MethodPost, "/api/v1/board/refresh", "alice", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, weberrors.CodeForbidden, resp.Code)

	code, resp = s.do(t, http.MethodPost, "/api/v1/board/refresh", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &board))
	assert.Len(t, board.Characters, 10)

	code, resp = s.do(t, http.MethodGet, "/api/v1/characters?rarity=mythic", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var mythics []model.Character
	require.NoError(t, json.Unmarshal(resp.Data, &mythics))
	require.Len(t, mythics, 1)
	assert.Equal(t, "anilist_1", mythics[0].ID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/characters?rarity=bogus", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestContractEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", map[string]int{"anilist_31": 120, "anilist_6": 25})

	code, resp := s.do(t, http.MethodGet, "/api/v1/me/contracts", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var info service.ContractInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, 120, info.RarityCounts[model.RarityCommon])

	code, resp = s.do(t, http.MethodPost, "/api/v1/me/contracts", "alice", ContractRequest{From: "common"})
	require.Equal(t, http.StatusOK, code)
	var result service.ContractResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.Executed)
	require.Len(t, result.Rewards, 1)
	assert.Equal(t, model.RarityRare, result.Rewards[0].Rarity)

	code, resp = s.do(t, http.MethodPost, "/api/v1/me/contracts", "alice", ContractRequest{
		From:      "epic",
		Materials: []MaterialRequest{{ID: "anilist_6", Count: 20}},
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.SelectionUsed)

	tests := []struct {
		name string
		req  ContractRequest
		code int
	}{
		{"missing rarity", ContractRequest{}, weberrors.CodeInvalidParams},
		{"mythic source", ContractRequest{From: "mythic"}, weberrors.CodeInvalidParams},
		{"bad pick", ContractRequest{From: "epic", Pick: "some name"}, weberrors.CodeInvalidParams},
		{"not enough copies", ContractRequest{From: "common"}, weberrors.CodeInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := s.do(t, http.MethodPost, "/api/v1/me/contracts", "alice", tt.req)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestTradeEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", map[string]int{"anilist_6": 1})
	s.seed(t, "bob", map[string]int{"anilist_2": 1})

	code, resp := s.do(t, http.MethodPost, "/api/v1/trades", "alice", TradeRequest{
		TargetID:  "bob",
		Offered:   "anilist_6",
		Requested: "anilist_2",
	})
	require.Equal(t, http.StatusOK, code, string(resp.Data))
	var offer model.TradeOffer
	require.NoError(t, json.Unmarshal(resp.Data, &offer))
	assert.Equal(t, model.TradePending, offer.Status)
	path := "/api/v1/trades/" + offer.ID

	code, resp = s.do(t, http.MethodGet, path, "carol", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = s.do(t, http.MethodPost, path+"/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = s.do(t, http.MethodPost, path+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var accepted service.TradeAcceptResult
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	assert.Equal(t, model.TradeAccepted, accepted.Offer.Status)

	code, resp = s.do(t, http.MethodPost, path+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, weberrors.CodeConflict, resp.Code)

	code, resp = s.do(t, http.MethodGet, "/api/v1/me/trades", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var list service.TradeList
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.RecentResolved, 1)
	assert.Equal(t, offer.ID, list.RecentResolved[0].ID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/trades/missing", "bob", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/trades", "alice", TradeRequest{TargetID: "bob", Offered: "anilist_2"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = s.do(t, http.MethodPost, "/api/v1/trades", "alice", TradeRequest{
		TargetID:  "helper-bot",
		TargetBot: true,
		Offered:   "anilist_2",
		Requested: "anilist_6",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, weberrors.CodeInvalidParams, resp.Code)
}

func TestCharacterEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", map[string]int{"anilist_7": 2})
	s.seed(t, "bob", map[string]int{"anilist_7": 5})

	board, err := s.engine.GetBoard(context.Background())
	require.NoError(t, err)

	code, resp := s.do(t, http.MethodGet, "/api/v1/characters/search?q=1", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var character model.Character
	require.NoError(t, json.Unmarshal(resp.Data, &character))
	assert.Equal(t, board[0].ID, character.ID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/characters/search", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = s.do(t, http.MethodGet, "/api/v1/characters/owners?q=anilist_7&limit=1", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var owners service.OwnersResult
	require.NoError(t, json.Unmarshal(resp.Data, &owners))
	assert.Equal(t, 2, owners.TotalOwners)
	require.Len(t, owners.Owners, 1)
	assert.Equal(t, "bob", owners.Owners[0].UserID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/characters/owners?q=anilist_7&limit=500", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// brokenService 只实现 GetProfile，其余方法不会被调用
type brokenService struct {
	Service
}

func (brokenService) GetProfile(context.Context, string, model.UserMeta) (*service.Profile, error) {
	return nil, errors.New("connection refused")
}

func TestInternalErrorHidden(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &security.Claims{UserID: "alice"})
	})
	NewGachaHandler(brokenService{}, logger.NewNoop()).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, weberrors.CodeInternalError, resp.Code)
	assert.Equal(t, "internal error", resp.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
