package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidinfra/entitle/internal/api/dto"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/service"
)

type MigrationHandler struct {
	service service.MigrationService
	log     *logger.Logger
}

func NewMigrationHandler(service service.MigrationService, log *logger.Logger) *MigrationHandler {
	return &MigrationHandler{service: service, log: log}
}

// @Summary Migrate account
// @Description Import an account's pre-existing subscriptions as full event timelines
// @Tags Migrations
// @Accept json
// @Produce json
// @Param request body dto.MigrateAccountRequest true "Account migration request"
// @Success 201 {object} dto.MigrateAccountResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /migrations/accounts [post]
func (h *MigrationHandler) MigrateAccount(c *gin.Context) {
	var req dto.MigrateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	data, err := h.service.MigrateAccount(c.Request.Context(), &req.AccountMigration)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewMigrateAccountResponse(data))
}
