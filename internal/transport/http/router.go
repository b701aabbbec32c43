package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/handlers"
	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
)

type Deps struct {
	DB             *gorm.DB
	Guard          *mwauth.Guard
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	OrderHandler   *handlers.OrderHandler
	ReviewHandler  *handlers.ReviewHandler
	ContactHandler *handlers.ContactHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.GET("/me", d.AuthHandler.Me, d.Guard.RequireAuth)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.List)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.Get)
	products.POST("/admin", d.ProductHandler.Create, d.Guard.RequireAuth, d.Guard.AdminOnly)
	products.PUT("/admin/:id", d.ProductHandler.Update, d.Guard.RequireAuth, d.Guard.AdminOnly)
	products.DELETE("/admin/:id", d.ProductHandler.Delete, d.Guard.RequireAuth, d.Guard.AdminOnly)

	orders := api.Group("/orders")
	orders.POST("", d.OrderHandler.Create, d.Guard.RequireAuth)
	orders.POST("/guest", d.OrderHandler.CreateGuest)
	orders.GET("/mine", d.OrderHandler.Mine, d.Guard.RequireAuth)
	orders.GET("/mine/:id", d.OrderHandler.MineByID, d.Guard.RequireAuth)
	orders.GET("/admin", d.OrderHandler.AdminList, d.Guard.RequireAuth, d.Guard.AdminOnly)
	orders.GET("/admin/unread-count", d.OrderHandler.AdminUnreadCount, d.Guard.RequireAuth, d.Guard.AdminOnly)
	orders.GET("/admin/:id", d.OrderHandler.AdminDetail, d.Guard.RequireAuth, d.Guard.AdminOnly)

	reviews := api.Group("/reviews")
	reviews.GET("", d.ReviewHandler.List)
	reviews.POST("", d.ReviewHandler.Upsert, d.Guard.RequireAuth)
	reviews.DELETE("/:id", d.ReviewHandler.Delete, d.Guard.RequireAuth, d.Guard.AdminOnly)

	contact := api.Group("/contact")
	contact.POST("", d.ContactHandler.Submit)
	contact.GET("/mine", d.ContactHandler.Mine, d.Guard.RequireAuth)
	contact.GET("/mine/replied-ids", d.ContactHandler.MineRepliedIDs, d.Guard.RequireAuth)
	contact.PATCH("/mine/mark-all-seen", d.ContactHandler.MineMarkAllSeen, d.Guard.RequireAuth)
	contact.PATCH("/mine/:id/seen", d.ContactHandler.MineMarkSeen, d.Guard.RequireAuth)
	contact.GET("/admin", d.ContactHandler.AdminList, d.Guard.RequireAuth, d.Guard.AdminOnly)
	contact.GET("/admin/unread-count", d.ContactHandler.AdminUnreadCount, d.Guard.RequireAuth, d.Guard.AdminOnly)
	contact.PATCH("/admin/mark-all-read", d.ContactHandler.AdminMarkAllRead, d.Guard.RequireAuth, d.Guard.AdminOnly)
	contact.GET("/admin/:id", d.ContactHandler.AdminDetail, d.Guard.RequireAuth, d.Guard.AdminOnly)
	contact.PUT("/admin/:id/reply", d.ContactHandler.AdminReply, d.Guard.RequireAuth, d.Guard.AdminOnly)
}
