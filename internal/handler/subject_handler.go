package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type subjectPartService interface {
	Split(ctx context.Context, req dto.SplitSubjectRequest) (*dto.SplitSubjectResponse, error)
	Merge(ctx context.Context, req dto.MergeSubjectRequest) (*dto.MergeSubjectResponse, error)
}

type coTeachingService interface {
	Check(ctx context.Context, planID int64) (*dto.CoTeachingCheckResponse, error)
	Link(ctx context.Context, req dto.LinkCoTeachingRequest) (*models.LinkGroup, error)
	Unlink(ctx context.Context, req dto.UnlinkCoTeachingRequest) ([]int64, error)
}

// SubjectHandler handles split, merge and co-teaching endpoints.
type SubjectHandler struct {
	parts subjectPartService
	links coTeachingService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(parts subjectPartService, links coTeachingService) *SubjectHandler {
	return &SubjectHandler{parts: parts, links: links}
}

// Split godoc
// @Summary Split a subject into two parts
// @Description Linked DVE and co-taught subjects are split in step. Affected placements are removed.
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.SplitSubjectRequest true "Split payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /subject/split [post]
func (h *SubjectHandler) Split(c *gin.Context) {
	var req dto.SplitSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid split payload"))
		return
	}
	result, err := h.parts.Split(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Merge godoc
// @Summary Merge split parts back into one subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.MergeSubjectRequest true "Merge payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /subject/merge [post]
func (h *SubjectHandler) Merge(c *gin.Context) {
	var req dto.MergeSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid merge payload"))
		return
	}
	result, err := h.parts.Merge(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CheckCoTeaching godoc
// @Summary Report the co-teaching group of a subject
// @Tags Subjects
// @Produce json
// @Param subjectId query int true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subject/co-teaching/check [get]
func (h *SubjectHandler) CheckCoTeaching(c *gin.Context) {
	planID, ok := queryID(c, "subjectId")
	if !ok {
		return
	}
	result, err := h.links.Check(c.Request.Context(), planID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// LinkCoTeaching godoc
// @Summary Mark subjects as co-taught
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.LinkCoTeachingRequest true "Link payload"
// @Success 200 {object} response.Envelope
// @Router /subject/co-teaching [post]
func (h *SubjectHandler) LinkCoTeaching(c *gin.Context) {
	var req dto.LinkCoTeachingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid co-teaching payload"))
		return
	}
	group, err := h.links.Link(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group)
}

// UnlinkCoTeaching godoc
// @Summary Remove subjects from a co-teaching group
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.UnlinkCoTeachingRequest true "Unlink payload"
// @Success 200 {object} response.Envelope
// @Router /subject/co-teaching [delete]
func (h *SubjectHandler) UnlinkCoTeaching(c *gin.Context) {
	var req dto.UnlinkCoTeachingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid co-teaching payload"))
		return
	}
	ids, err := h.links.Unlink(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": ids})
}
