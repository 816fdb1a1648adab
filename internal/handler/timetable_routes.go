package handler

import "github.com/gin-gonic/gin"

// RegisterTimetableRoutes mounts the timetable endpoints under group.
func RegisterTimetableRoutes(group *gin.RouterGroup, h *TimetableHandler) {
	timetables := group.Group("/timetables")
	timetables.GET("/calendar", h.Calendar)
	timetables.GET("/roster", h.Roster)
	timetables.POST("/roster/refresh", h.RefreshRoster)
	timetables.POST("/generate", h.Generate)
	timetables.POST("/:class/open", h.Open)
	timetables.GET("/:class/export", h.Export)

	sessions := group.Group("/timetable-sessions")
	sessions.GET("/:id", h.Session)
	sessions.DELETE("/:id", h.Discard)
	sessions.GET("/:id/load", h.TeacherLoad)
	sessions.POST("/:id/save", h.Save)
	sessions.POST("/:id/publish", h.Publish)
	sessions.PUT("/:id/slots/:slot", h.Assign)
	sessions.DELETE("/:id/slots/:slot", h.Clear)
	sessions.PUT("/:id/slots/:slot/teacher", h.OverrideTeacher)
	sessions.DELETE("/:id/slots/:slot/teacher", h.ClearOverride)
}
