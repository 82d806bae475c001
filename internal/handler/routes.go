package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
)

// Handlers groups every HTTP handler mounted by Register.
type Handlers struct {
	Timetable *TimetableHandler
	Subject   *SubjectHandler
	Scheduler *SchedulerHandler
	Metrics   *MetricsHandler
}

// Register mounts probes at the root and the authenticated API under prefix.
// Reads are open to admins and teachers; every write is admin only and audited.
func Register(r *gin.Engine, prefix string, h Handlers, tokens middleware.TokenValidator, logger *zap.Logger, exposeMetrics bool) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if exposeMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix, middleware.JWT(tokens), middleware.WithResponseMeta())
	read := middleware.RBAC(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RBAC(models.RoleAdmin)

	timetable := api.Group("/timetable")
	timetable.GET("", read, h.Timetable.List)
	timetable.GET("/me", middleware.RBAC(models.RoleTeacher), h.Timetable.Mine)
	timetable.POST("", admin, middleware.Audit(logger, "timetable.assign"), h.Timetable.Assign)
	timetable.DELETE("/:subjectId", admin, middleware.Audit(logger, "timetable.unassign"), h.Timetable.Unassign)

	subject := api.Group("/subject")
	subject.POST("/split", admin, middleware.Audit(logger, "subject.split"), h.Subject.Split)
	subject.POST("/merge", admin, middleware.Audit(logger, "subject.merge"), h.Subject.Merge)
	subject.GET("/co-teaching/check", read, h.Subject.CheckCoTeaching)
	subject.POST("/co-teaching", admin, middleware.Audit(logger, "co_teaching.link"), h.Subject.LinkCoTeaching)
	subject.DELETE("/co-teaching", admin, middleware.Audit(logger, "co_teaching.unlink"), h.Subject.UnlinkCoTeaching)

	scheduler := api.Group("/scheduler", admin)
	scheduler.POST("/scope", middleware.Audit(logger, "scheduler.scope"), h.Scheduler.Scope)
	scheduler.POST("/curriculum", middleware.Audit(logger, "scheduler.curriculum"), h.Scheduler.Curriculum)
	scheduler.POST("/clear", middleware.Audit(logger, "scheduler.clear"), h.Scheduler.Clear)
	scheduler.GET("/runs/:id", h.Scheduler.Run)
}
