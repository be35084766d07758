package main

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError writes the JSON error envelope for err.
// Unclassified errors are logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch utils.ErrorKindOf(err) {
	case utils.ErrorKindValidation:
		status = http.StatusBadRequest
	case utils.ErrorKindNotFound:
		status = http.StatusNotFound
	case utils.ErrorKindConflict:
		status = http.StatusConflict
	case utils.ErrorKindTransient:
		status = http.StatusServiceUnavailable
	}

	code := utils.ErrorCodeOf(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		_ = c.Error(err)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.GetLogger().WithFields(logrus.Fields{
			"field":          "http",
			"path":           c.FullPath(),
			"correlation_id": cid,
		}).Error(err.Error())
		code = "Internal"
		message = "internal server error"
	case status == http.StatusNotFound && code == "":
		code = utils.ErrCodeNotFound
		message = "record not found"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "invalid request body: %s", err.Error()))
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func optionalQuery(c *gin.Context, name string) *string {
	value, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	value = strings.TrimSpace(value)
	return &value
}

func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	value := optionalQuery(c, name)
	if value == nil || *value == "" {
		return nil, true
	}
	n, err := strconv.Atoi(*value)
	if err != nil {
		respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "%s must be an integer", name))
		return nil, false
	}
	return &n, true
}

func optionalBoolQuery(c *gin.Context, name string) (*bool, bool) {
	value := optionalQuery(c, name)
	if value == nil || *value == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(*value)
	if err != nil {
		respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "%s must be true or false", name))
		return nil, false
	}
	return &b, true
}

type toggleActiveInput struct {
	IsActive *bool `json:"is_active"`
}

func bindToggle(c *gin.Context) (bool, bool) {
	var input toggleActiveInput
	if !bindJSON(c, &input) {
		return false, false
	}
	if input.IsActive == nil {
		respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "is_active is required"))
		return false, false
	}
	return *input.IsActive, true
}

func groupIdOf(c *gin.Context) string {
	groupId, _ := utils.GetGroupIdFromContext(c.Request.Context())
	return groupId
}
