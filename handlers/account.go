package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/users"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/middleware"
)

// AccountHandler serves the signed-in user's account and the admin user lookup.
type AccountHandler struct {
	usersSvc *users.Service
}

func NewAccountHandler(u *users.Service) *AccountHandler {
	return &AccountHandler{usersSvc: u}
}

func (h *AccountHandler) Register(rg *gin.RouterGroup, authz *middleware.Authorizer) {
	rg.GET("/account", authz.Wrap(h.Account, models.RoleUser, models.RoleAdmin))
	rg.GET("/admin/users/:id", authz.Wrap(h.GetUser, models.RoleAdmin))
}

// Account returns balance, bank and verification state of the session user.
func (h *AccountHandler) Account(c *gin.Context) {
	u, _ := auth.UserFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": gin.H{
			"id":                 u.ID,
			"username":           u.Username,
			"balance":            u.Balance,
			"bank":               u.Bank,
			"verificationStatus": u.VerificationStatus,
			"active":             u.Active,
		},
	})
}

// GetUser returns any account by id. Store failures are left to the
// authorizer to report.
func (h *AccountHandler) GetUser(c *gin.Context) {
	id := c.Param("id")
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		c.Error(fmt.Errorf("get user %s: %w", id, err))
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "user not found"})
		return
	}
	u.Normalize()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}
