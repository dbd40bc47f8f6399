package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
)

// Service 处理器依赖的引擎操作，*service.Engine 满足该接口
type Service interface {
	GetProfile(ctx context.Context, userID string, meta model.UserMeta) (*service.Profile, error)
	GetInventory(ctx context.Context, userID string, meta model.UserMeta) (*service.InventoryView, error)
	ClaimDaily(ctx context.Context, userID string, meta model.UserMeta) (*service.DailyClaim, error)

	GetBoard(ctx context.Context) ([]model.Character, error)
	GetBoardRefreshInfo() service.BoardRefreshInfo
	RefreshBoard(ctx context.Context, actorID string) ([]model.Character, error)
	GetCharactersByRarity(ctx context.Context, rarity string) ([]model.Character, error)
	GetMythicCatalog(ctx context.Context) ([]model.Character, error)

	RollMany(ctx context.Context, userID string, count int, meta model.UserMeta) (*service.RollResult, error)

	GetContractInfo(ctx context.Context, userID string, meta model.UserMeta) (*service.ContractInfo, error)
	ExecuteContract(ctx context.Context, userID, from string, count int, meta model.UserMeta, selection []model.MaterialSelection) (*service.ContractResult, error)

	CreateTradeOffer(ctx context.Context, req service.TradeCreateRequest) (*model.TradeOffer, error)
	AcceptTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*service.TradeAcceptResult, error)
	RejectTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*model.TradeOffer, error)
	CancelTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*model.TradeOffer, error)
	ListTradeOffers(ctx context.Context, userID string, meta model.UserMeta) (*service.TradeList, error)
	GetTradeOffer(ctx context.Context, tradeID string) (*model.TradeOffer, error)

	FindCharacter(ctx context.Context, query string) (*model.Character, error)
	GetCharacterDetails(ctx context.Context, query string) (*service.CharacterDetails, error)
	FindOwnersByCharacter(ctx context.Context, query string, limit int) (*service.OwnersResult, error)
}

// GachaHandler 抽卡 HTTP 接口
type GachaHandler struct {
	svc    Service
	logger logger.Logger
}

// NewGachaHandler 创建处理器
func NewGachaHandler(svc Service, l logger.Logger) *GachaHandler {
	return &GachaHandler{
		svc:    svc,
		logger: l.Named("handler.gacha"),
	}
}

// Register 注册路由，r 应已挂载鉴权中间件
func (h *GachaHandler) Register(r gin.IRouter) {
	me := r.Group("/me")
	{
		me.GET("", h.Profile)
		me.GET("/inventory", h.Inventory)
		me.POST("/daily", h.ClaimDaily)
		me.POST("/rolls", h.Roll)
		me.GET("/contracts", h.ContractInfo)
		me.POST("/contracts", h.ExecuteContract)
		me.GET("/trades", h.ListTrades)
	}

	board := r.Group("/board")
	{
		board.GET("", h.Board)
		board.GET("/refresh", h.BoardRefreshInfo)
		board.POST("/refresh", h.RefreshBoard)
	}

	r.GET("/characters", h.CharactersByRarity)
	r.GET("/characters/mythic", h.MythicCatalog)
	r.GET("/characters/search", h.FindCharacter)
	r.GET("/characters/details", h.CharacterDetails)
	r.GET("/characters/owners", h.Owners)

	trades := r.Group("/trades")
	{
		trades.POST("", h.CreateTrade)
		trades.GET("/:id", h.GetTrade)
		trades.POST("/:id/accept", h.AcceptTrade)
		trades.POST("/:id/reject", h.RejectTrade)
		trades.POST("/:id/cancel", h.CancelTrade)
	}
}

// identity 从 JWT 声明中取出调用方身份
func identity(c *gin.Context) (string, model.UserMeta) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return "", model.UserMeta{}
	}
	return claims.UserID, model.UserMeta{
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Bot:         claims.Bot,
	}
}

// errorCode 领域错误类别到业务错误码
func errorCode(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return errors.CodeInvalidParams
	case model.KindNotFound:
		return errors.CodeNotFound
	case model.KindAuthorization:
		return errors.CodeForbidden
	case model.KindConflict:
		return errors.CodeConflict
	case model.KindStaleState:
		return errors.CodeStaleState
	case model.KindInsufficientResource:
		return errors.CodeInsufficient
	case model.KindCooldown:
		return errors.CodeCooldown
	case model.KindProviderDegraded:
		return errors.CodeExternalError
	default:
		return errors.CodeInternalError
	}
}

// fail 写出错误响应；internal 错误只记录日志，不向调用方暴露原因
func (h *GachaHandler) fail(c *gin.Context, op string, err error) {
	var ge *model.GachaError
	if !stderrors.As(err, &ge) || ge.Kind == model.KindInternal {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "op", op, "error", err)
		web.Error(c, errors.CodeInternalError, "internal error", nil)
		return
	}

	h.logger.DebugContext(c.Request.Context(), "request rejected", "op", op, "kind", string(ge.Kind), "error", err)
	var data any
	if len(ge.Details) > 0 {
		data = ge.Details
	}
	web.Error(c, errorCode(ge.Kind), ge.Message, data)
}
