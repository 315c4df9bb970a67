package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/teamsync-api/internal/errors"
	"github.com/yukikurage/teamsync-api/internal/services"
)

// respondServiceError maps service-layer sentinel errors onto the API
// error vocabulary. Unknown errors become a 500 without leaking detail.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrDeletionLogNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotAuthorized),
		errors.Is(err, services.ErrNotParentAssignee):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrStatusInvalid),
		errors.Is(err, services.ErrPriorityInvalid),
		errors.Is(err, services.ErrEndDateInvalid),
		errors.Is(err, services.ErrAssigneeNotFound),
		errors.Is(err, services.ErrMonthInvalid):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrAlreadyClaimed):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrTransitionInvalid),
		errors.Is(err, services.ErrOnlyPlanningClaimable),
		errors.Is(err, services.ErrAssigneeRequired),
		errors.Is(err, services.ErrDepthExceeded),
		errors.Is(err, services.ErrHasSubtasks),
		errors.Is(err, services.ErrProjectArchived):
		apierrors.UnprocessableEntity(c, err.Error())
	case errors.Is(err, services.ErrAIServiceNotConfigured),
		errors.Is(err, services.ErrAINoSubtasksGenerated):
		apierrors.RespondWithError(c, http.StatusServiceUnavailable, apierrors.NewAPIError(apierrors.ErrCodeInternalError, err.Error()))
	default:
		apierrors.InternalError(c, "")
	}
}
