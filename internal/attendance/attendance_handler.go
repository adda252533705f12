package attendance

import (
	"net/http"
	"strconv"

	"go-bioattend/internal/shared/apperror"
	"go-bioattend/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func bindError(c *gin.Context, err error) {
	mapped := apperror.ToHTTP(apperror.MapValidationError(err))
	response.Error(c, mapped.Status, mapped.Code, mapped.Message, nil)
}

func (h *Handler) MarkByFace(c *gin.Context) {
	var req MarkFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.service.MarkByFace(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Transition == string(TransitionLogin) {
		status = http.StatusCreated
	}
	response.Success(c, status, resp, nil)
}

func (h *Handler) MarkByAssertion(c *gin.Context) {
	var req MarkAssertionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.service.MarkByAssertion(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Transition == string(TransitionLogin) {
		status = http.StatusCreated
	}
	response.Success(c, status, resp, nil)
}

func (h *Handler) IssueChallenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.service.IssueChallenge(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) ListByDay(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 {
		pageSize = 20
	}

	resp, total, err := h.service.ListByDay(c.Request.Context(), c.Query("day"), page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	meta := response.NewPaginationMeta(total, page, pageSize)
	response.Success(c, http.StatusOK, resp, &meta)
}

func (h *Handler) ListAbsentees(c *gin.Context) {
	resp, err := h.service.ListAbsentees(c.Request.Context(), c.Query("day"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
