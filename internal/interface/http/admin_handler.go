package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/pkg/response"
	"github.com/oksasatya/notism-go/pkg/validation"
)

type AdminHandler struct {
	Users  *application.UserService
	Logger *logrus.Logger
}

func NewAdminHandler(users *application.UserService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Users: users, Logger: logger}
}

type searchUsersQuery struct {
	Q    string `form:"q" binding:"required,max=200"`
	Size int    `form:"size" binding:"omitempty,min=1,max=50"`
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SearchUsers runs a full-text query against the users index.
func (h *AdminHandler) SearchUsers(c *gin.Context) {
	var q searchUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query", validation.ToDetails(err))
		return
	}
	hits, err := h.Users.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "users", map[string]any{"count": len(hits)})
}

func (h *AdminHandler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Logger.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role.String()}).Info("role updated")
	response.Success(c, http.StatusOK, application.NewUserInfo(u), "role updated", nil)
}
