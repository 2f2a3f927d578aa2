package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/duynguyendang/blockbaker/pkg/bake"
	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type createTagRequest struct {
	Path   string   `json:"path" validate:"required"`
	Values []string `json:"values" validate:"omitempty,dive,required"`
}

type editValuesRequest struct {
	Add    []string `json:"add" validate:"omitempty,dive,required"`
	Remove []string `json:"remove" validate:"omitempty,dive,required"`
}

type tagBlocksRequest struct {
	Blocks []string `json:"blocks" validate:"required,min=1,dive,required"`
	Add    []string `json:"add" validate:"omitempty,dive,required"`
	Remove []string `json:"remove" validate:"omitempty,dive,required"`
}

type bakeRequest struct {
	Flags []bake.Flag `json:"flags" validate:"required,min=1,dive"`
}

// handleProjects returns a list of available projects.
func (s *Server) handleProjects(c *gin.Context) {
	projects, err := s.catalog.ListProjects()
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// handleQuery evaluates a tag expression.
func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	res, err := s.catalog.Query(c.Request.Context(), c.Query("project"), req.Query)
	if err != nil {
		s.handleError(c, err)
		return
	}
	queryResults.Observe(float64(res.Count))
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListTags(c *gin.Context) {
	list, err := s.catalog.ListTags(c.Request.Context(), c.Query("project"), c.Query("glob"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": list})
}

func (s *Server) handleDescribeTag(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, "Missing tag path", nil))
		return
	}
	info, err := s.catalog.DescribeTag(c.Request.Context(), c.Query("project"), path)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleCreateTag(c *gin.Context) {
	var req createTagRequest
	if !s.bind(c, &req) {
		return
	}
	info, err := s.catalog.CreateTag(c.Request.Context(), c.Query("project"), req.Path, req.Values)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleEditValues(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, "Missing tag path", nil))
		return
	}
	var req editValuesRequest
	if !s.bind(c, &req) {
		return
	}
	info, err := s.catalog.EditValues(c.Request.Context(), c.Query("project"), path, req.Add, req.Remove)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteTag(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, "Missing tag path", nil))
		return
	}
	if err := s.catalog.DeleteTag(c.Request.Context(), c.Query("project"), path); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTagBlocks(c *gin.Context) {
	var req tagBlocksRequest
	if !s.bind(c, &req) {
		return
	}
	blocks, err := service.ParseBlocks(req.Blocks)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if err := s.catalog.TagBlocks(c.Request.Context(), c.Query("project"), blocks, req.Add, req.Remove); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks.Strings()})
}

func (s *Server) handleBake(c *gin.Context) {
	var req bakeRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.catalog.Bake(c.Request.Context(), c.Query("project"), req.Flags)
	if err != nil {
		s.handleError(c, err)
		return
	}
	bakedMasks.Observe(float64(len(res.Masks)))
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleVerify(c *gin.Context) {
	violations, err := s.catalog.Verify(c.Request.Context(), c.Query("project"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"violations": violations})
}

// bind decodes and validates a JSON body, writing the error response itself.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		msg := "Invalid request body"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("Invalid request body: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		s.handleError(c, apperrors.NewAppError(http.StatusBadRequest, msg, err))
		return false
	}
	return true
}

func (s *Server) handleError(c *gin.Context, err error) {
	appErr := apperrors.MapError(err)
	if appErr.Code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": appErr.Message}
	if appErr.Err != nil && appErr.Code < http.StatusInternalServerError {
		body["detail"] = appErr.Err.Error()
	}
	c.JSON(appErr.Code, body)
}
