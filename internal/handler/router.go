package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canto-lessons/internal/middleware"
)

// Routes bundles the handlers mounted by Register.
type Routes struct {
	APIPrefix        string
	SnapshotFilename string
	TeacherGate      gin.HandlerFunc

	Lessons     *LessonHandler
	Students    *StudentHandler
	Exports     *ExportHandler
	Portal      *PortalHandler
	Sessions    *SessionHandler
	Annotations *AnnotationHandler
	Metrics     *MetricsHandler
}

// Register mounts every route on r. Teacher routes sit behind the PIN gate;
// the portal, share decoding, signed downloads and the published snapshot do not.
func Register(r *gin.Engine, routes Routes) {
	if routes.Metrics != nil {
		r.GET("/health", routes.Metrics.Health)
		r.GET("/ready", routes.Metrics.Ready)
		r.GET("/metrics", routes.Metrics.Prometheus)
	}
	if routes.Exports != nil && routes.SnapshotFilename != "" {
		r.GET("/"+strings.TrimPrefix(routes.SnapshotFilename, "/"), routes.Exports.ServePublished)
	}

	prefix := routes.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.ResponseMeta())

	gate := routes.TeacherGate
	if gate == nil {
		gate = func(c *gin.Context) { c.Next() }
	}
	teacher := api.Group("")
	teacher.Use(gate)

	if h := routes.Sessions; h != nil {
		api.GET("/session/:id", h.Get)
		api.POST("/session/teacher", h.Teacher)
		api.POST("/session/portal", h.Portal)
		api.POST("/session/exit", h.Exit)
		teacher.POST("/session/editor", h.OpenEditor)
		teacher.POST("/session/editor/close", h.CloseEditor)
	}

	if h := routes.Lessons; h != nil {
		teacher.GET("/lessons", h.List)
		teacher.POST("/lessons", h.Create)
		teacher.GET("/lessons/:id", h.Get)
		teacher.PUT("/lessons/:id", h.Update)
		teacher.DELETE("/lessons/:id", h.Delete)
	}

	if h := routes.Students; h != nil {
		teacher.GET("/students", h.List)
		teacher.POST("/students", h.Create)
		teacher.GET("/students/:id", h.Get)
		teacher.PUT("/students/:id", h.Update)
		teacher.DELETE("/students/:id", h.Delete)
		teacher.POST("/students/:id/lessons/:lessonId", h.Assign)
		teacher.DELETE("/students/:id/lessons/:lessonId", h.Unassign)
	}

	if h := routes.Exports; h != nil {
		teacher.GET("/exports/lessons/:id/file", h.LessonFile)
		teacher.GET("/exports/lessons/:id/link", h.Link)
		teacher.GET("/exports/snapshot/file", h.SnapshotFile)
		teacher.POST("/exports/snapshot/publish", h.Publish)
		teacher.GET("/exports/students/:id/package", h.StudentPackage)
		teacher.GET("/exports/roster.csv", h.Roster)
		api.GET("/exports/download/:token", h.Download)
	}

	if h := routes.Annotations; h != nil {
		teacher.POST("/annotations", h.Annotate)
		teacher.POST("/annotations/article", h.Article)
	}

	if h := routes.Portal; h != nil {
		api.GET("/portal", h.Load)
		api.GET("/portal/state", h.State)
		api.GET("/portal/share/:token", h.Share)
		api.POST("/portal/upload", h.Upload)
	}
}
