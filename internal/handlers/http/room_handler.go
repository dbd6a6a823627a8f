package http

import (
	"net/http"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
	"relaycast/internal/infrastructure/middleware"
	apperrors "relaycast/pkg/errors"
	"relaycast/pkg/validation"

	"github.com/gin-gonic/gin"
)

// RoomHandler exposes the room management surface: claiming names,
// password auth, gating configuration, and the public listing.
type RoomHandler struct {
	directory ports.DirectoryService
	auth      ports.AuthService
}

func NewRoomHandler(directory ports.DirectoryService, auth ports.AuthService) *RoomHandler {
	return &RoomHandler{directory: directory, auth: auth}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms", h.ClaimRoom)
		api.POST("/rooms/:name/auth", h.Authenticate)
		api.POST("/rooms/:name/purchase", h.Purchase)

		managed := api.Group("/rooms/:name", middleware.RoomAuthMiddleware(h.auth))
		{
			managed.PATCH("", h.UpdateRoom)
			managed.POST("/vip/codes", h.GenerateVipCode)
			managed.DELETE("/vip/codes/:code", h.RevokeVipCode)
			managed.POST("/vip/users", h.AddVipUser)
		}
	}
}

func (h *RoomHandler) ClaimRoom(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Password string `json:"password"`
		Privacy  string `json:"privacy"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	privacy := domain.Privacy(req.Privacy)
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}
	record, err := h.directory.CreateRoom(c.Request.Context(), domain.RoomName(req.Name), req.Password, privacy)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"name":    record.Name,
		"privacy": record.Privacy,
	})
}

func (h *RoomHandler) Authenticate(c *gin.Context) {
	room := domain.RoomName(validation.NormalizeRoomName(c.Param("name")))

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.Authenticate(c.Request.Context(), room, req.Password); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.auth.GenerateRoomToken(room)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	room, ok := h.authorizedRoom(c)
	if !ok {
		return
	}

	var req struct {
		Privacy     *string `json:"privacy"`
		VipRequired *bool   `json:"vip_required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var record *domain.RoomRecord
	var err error
	if req.Privacy != nil {
		record, err = h.directory.UpdatePrivacy(c.Request.Context(), room, domain.Privacy(*req.Privacy))
		if err != nil {
			respondError(c, err)
			return
		}
	}
	if req.VipRequired != nil {
		record, err = h.directory.UpdateVipRequired(c.Request.Context(), room, *req.VipRequired)
		if err != nil {
			respondError(c, err)
			return
		}
	}
	if record == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":         record.Name,
		"privacy":      record.Privacy,
		"vip_required": record.VipRequired,
	})
}

func (h *RoomHandler) GenerateVipCode(c *gin.Context) {
	room, ok := h.authorizedRoom(c)
	if !ok {
		return
	}

	var req struct {
		MaxUses int `json:"max_uses"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, entry, err := h.directory.GenerateVipCode(c.Request.Context(), room, req.MaxUses)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":      code,
		"max_uses":  entry.MaxUses,
		"uses_left": entry.UsesLeft,
	})
}

func (h *RoomHandler) RevokeVipCode(c *gin.Context) {
	room, ok := h.authorizedRoom(c)
	if !ok {
		return
	}

	if err := h.directory.RevokeVipCode(c.Request.Context(), room, c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) AddVipUser(c *gin.Context) {
	room, ok := h.authorizedRoom(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateDisplayName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.directory.AddVipUser(c.Request.Context(), room, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vip_roster": record.RosterNames()})
}

// Purchase marks a room permanent so it survives expiry sweeps. It stands in
// for the payment provider webhook and carries no auth beyond the route.
func (h *RoomHandler) Purchase(c *gin.Context) {
	room := domain.RoomName(validation.NormalizeRoomName(c.Param("name")))

	if err := h.directory.MarkPermanent(c.Request.Context(), room); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permanent": true})
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	records, err := h.directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	type roomSummary struct {
		Name        domain.RoomName `json:"name"`
		Live        bool            `json:"live"`
		ViewerCount int             `json:"viewer_count"`
		Title       string          `json:"title"`
		Privacy     domain.Privacy  `json:"privacy"`
	}

	rooms := make([]roomSummary, 0, len(records))
	for _, r := range records {
		rooms = append(rooms, roomSummary{
			Name:        r.Name,
			Live:        r.Live,
			ViewerCount: r.ViewerCount,
			Title:       r.Title,
			Privacy:     r.Privacy,
		})
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// authorizedRoom checks that the token's room matches the route parameter.
func (h *RoomHandler) authorizedRoom(c *gin.Context) (domain.RoomName, bool) {
	val, exists := c.Get(middleware.RoomContextKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	room, _ := val.(domain.RoomName)

	requested := domain.RoomName(validation.NormalizeRoomName(c.Param("name")))
	if room != requested {
		c.JSON(http.StatusForbidden, gin.H{"error": "token is scoped to a different room"})
		return "", false
	}
	return room, true
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)
	c.JSON(appErr.HTTPStatus, gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}
