package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
)

type Handlers struct {
	Auth         *apiHandler.AuthHandler
	Profile      *apiHandler.ProfileHandler
	Task         *apiHandler.TaskHandler
	Collab       *apiHandler.CollabHandler
	Friend       *apiHandler.FriendHandler
	Notification *apiHandler.NotificationHandler
	Achievement  *apiHandler.AchievementHandler
	Cleanup      *apiHandler.CleanupHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)
	r.POST("/api/v1/auth/logout", authMiddleware(handlers.Auth.Logout))

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	tasks := r.Group("/api/v1/tasks")
	tasks.GET("", authMiddleware(handlers.Task.ListOwn))
	tasks.POST("", authMiddleware(handlers.Task.Create))
	tasks.GET("/shared", authMiddleware(handlers.Task.ListShared))
	tasks.GET("/shared/stream", authMiddleware(handlers.Task.StreamShared))
	tasks.GET("/{owner}/{id}", authMiddleware(handlers.Task.Get))
	tasks.DELETE("/{owner}/{id}", authMiddleware(handlers.Task.Delete))
	tasks.POST("/{owner}/{id}/complete", authMiddleware(handlers.Task.ToggleComplete))
	tasks.POST("/{owner}/{id}/finalize", authMiddleware(handlers.Task.Finalize))
	tasks.POST("/{owner}/{id}/share", authMiddleware(handlers.Collab.Share))
	tasks.DELETE("/{owner}/{id}/share/{friend}", authMiddleware(handlers.Collab.Unshare))
	tasks.POST("/{owner}/{id}/subtasks/{index}/toggle", authMiddleware(handlers.Task.ToggleSubtask))
	tasks.PUT("/{owner}/{id}/subtasks/{index}", authMiddleware(handlers.Collab.UpdateSubtask))
	tasks.POST("/{owner}/{id}/comments", authMiddleware(handlers.Collab.AddComment))
	tasks.PUT("/{owner}/{id}/comments/{comment}", authMiddleware(handlers.Collab.EditComment))
	tasks.DELETE("/{owner}/{id}/comments/{comment}", authMiddleware(handlers.Collab.DeleteComment))

	friends := r.Group("/api/v1/friends")
	friends.GET("", authMiddleware(handlers.Friend.List))
	friends.DELETE("/{id}", authMiddleware(handlers.Friend.Remove))
	friends.GET("/requests", authMiddleware(handlers.Friend.Pending))
	friends.POST("/requests", authMiddleware(handlers.Friend.Send))
	friends.POST("/requests/{id}/accept", authMiddleware(handlers.Friend.Accept))
	friends.POST("/requests/{id}/reject", authMiddleware(handlers.Friend.Reject))

	r.GET("/api/v1/notifications", authMiddleware(handlers.Notification.List))
	r.POST("/api/v1/notifications/{id}/read", authMiddleware(handlers.Notification.MarkRead))
	r.DELETE("/api/v1/notifications/{id}", authMiddleware(handlers.Notification.Delete))

	r.GET("/api/v1/achievements", authMiddleware(handlers.Achievement.List))
	r.GET("/api/v1/achievements/unnotified", authMiddleware(handlers.Achievement.Unnotified))
	r.POST("/api/v1/achievements/{id}/notified", authMiddleware(handlers.Achievement.MarkNotified))
	r.GET("/api/v1/progress", authMiddleware(handlers.Achievement.Progress))
	r.GET("/api/v1/progress/history", authMiddleware(handlers.Achievement.History))

	r.POST("/api/v1/cleanup", authMiddleware(handlers.Cleanup.Run))

	return r
}
