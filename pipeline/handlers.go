package pipeline

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

var validTasks = map[string]bool{
	models.TaskPrepareReplenishment: true,
	models.TaskPopulateAirtable:     true,
	models.TaskBarcodeLabels:        true,
	models.TaskPushPurchaseOrders:   true,
}

type triggerRequest struct {
	Task string `json:"task"`
}

// TriggerHandler queues a pipeline run. With Pub/Sub configured the run is
// published for the push worker; otherwise it executes inline.
func (w *Worker) TriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		task := strings.TrimSpace(req.Task)
		if !validTasks[task] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown task"})
			return
		}

		if config.HasPubSub() {
			if err := PublishRun(c.Request.Context(), task, models.RunTriggeredRemote); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"task": task, "status": models.RunStatusQueued})
			return
		}

		run, err := w.Run(c.Request.Context(), task, models.RunTriggeredRemote)
		if errors.Is(err, ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "run already in progress"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// HistoryHandler lists recent runs, newest first.
func HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.HasDatabase() {
			c.JSON(http.StatusOK, gin.H{"items": []models.PipelineRun{}})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		task := strings.TrimSpace(c.Query("task"))
		query := config.GetDB().WithContext(c.Request.Context()).Order("id desc").Limit(limit)
		if task != "" {
			query = query.Where("task = ?", task)
		}

		var runs []models.PipelineRun
		if err := query.Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{"items": runs}
		if task != "" {
			if ts, found, err := config.GetRedisValue(lastSuccessKey(task)); err == nil && found {
				resp["last_success"] = ts
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RunDetailHandler returns one run with its recorded errors.
func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.HasDatabase() {
			c.JSON(http.StatusNotFound, gin.H{"error": "run history is not enabled"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.PipelineRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var runErrors []models.PipelineRunError
		if err := db.Where("run_id = ?", run.ID).Order("id desc").Find(&runErrors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": runErrors})
	}
}
