package main

import (
	"bytes"
	"net/http"

	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType          = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportSizeBytes int64 = 10 * 1024 * 1024
)

func listSchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schedules, err := models.GetSchedules(c.Request.Context(), optionalQuery(c, "search"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, schedules)
	}
}

func paginateSchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := optionalIntQuery(c, "limit")
		if !ok {
			return
		}
		isActive, ok := optionalBoolQuery(c, "is_active")
		if !ok {
			return
		}
		page, err := models.PaginateSchedule(c.Request.Context(), limit, optionalQuery(c, "after"), optionalQuery(c, "search"), isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schedule, err := models.GetSchedule(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}

func createScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSchedule
		if !bindJSON(c, &input) {
			return
		}
		schedule, err := models.CreateSchedule(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, schedule)
	}
}

func updateScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSchedule
		if !bindJSON(c, &input) {
			return
		}
		schedule, err := models.UpdateSchedule(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}

func deleteScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schedule, err := models.DeleteSchedule(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}

func toggleScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		isActive, ok := bindToggle(c)
		if !ok {
			return
		}
		schedule, err := models.ToggleActiveSchedule(c.Request.Context(), c.Param("id"), isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}

func scheduleTreeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tree, err := models.GetActiveScheduleTree(c.Request.Context(), groupIdOf(c), optionalQuery(c, "search"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tree)
	}
}

func importSchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "multipart field \"file\" is required"))
			return
		}
		if fileHeader.Size > maxImportSizeBytes {
			respondError(c, utils.NewValidationError(utils.ErrCodeInvalidInput, "file is larger than %d bytes", maxImportSizeBytes))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer file.Close()

		result, err := models.ImportSchedulesFromFile(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func scheduleImportTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if err := models.WriteScheduleImportTemplate(&buf); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="schedule_import_template.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func listRenameSchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renames, err := models.GetRenameSchedules(c.Request.Context(), groupIdOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, renames)
	}
}

func upsertRenameScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRenameSchedule
		if !bindJSON(c, &input) {
			return
		}
		// the group always comes from the caller's identity
		input.GroupId = groupIdOf(c)
		rename, err := models.UpsertRenameSchedule(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rename)
	}
}

func deleteRenameScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rename, err := models.DeleteRenameSchedule(c.Request.Context(), groupIdOf(c), c.Param("scheduleId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rename)
	}
}

func listHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := optionalIntQuery(c, "limit")
		if !ok {
			return
		}
		page, err := models.PaginateHistory(c.Request.Context(), groupIdOf(c), limit,
			optionalQuery(c, "after"), optionalQuery(c, "reference_type"), optionalQuery(c, "action_type"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}
