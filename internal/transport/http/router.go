package httpserver

import (
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/auth"
	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/checkout"
	"github.com/stroymarket/backend/internal/events"
	"github.com/stroymarket/backend/internal/feed"
	"github.com/stroymarket/backend/internal/geo"
	"github.com/stroymarket/backend/internal/handlers"
	"github.com/stroymarket/backend/internal/notify"
)

type Deps struct {
	DB        *gorm.DB
	Carts     *cart.Manager
	CartCache *cart.SQLiteCache
	Feed      *feed.Client
	Suggest   *geo.SuggestClient
	Delivery  *geo.DeliveryCalculator
	Email     notify.Sender
	Telegram  notify.Sender
	Producer  *events.Producer
	ES        *elasticsearch.Client
	ESIndex   string

	JWTSecret     []byte
	RefreshSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	authHandler := &auth.Handler{
		DB:            d.DB,
		JWTSecret:     d.JWTSecret,
		RefreshSecret: d.RefreshSecret,
		Producer:      d.Producer,
		CartCache:     d.CartCache,
		Carts:         d.Carts,
	}
	productHandler := &handlers.ProductHandler{Feed: d.Feed}
	searchHandler := &handlers.SearchHandler{ES: d.ES, Index: d.ESIndex}
	geoHandler := &handlers.GeoHandler{Suggest: d.Suggest, Delivery: d.Delivery}
	cartHandler := &handlers.CartHandler{Carts: d.Carts, Producer: d.Producer}
	checkoutHandler := &handlers.CheckoutHandler{
		Carts: d.Carts,
		Orchestrator: &checkout.Orchestrator{
			DB:       d.DB,
			Delivery: d.Delivery,
			Email:    d.Email,
			Telegram: d.Telegram,
			Producer: d.Producer,
		},
	}
	orderHandler := &handlers.OrderHandler{DB: d.DB}
	contactHandler := &handlers.ContactHandler{
		DB:            d.DB,
		Email:         d.Email,
		Telegram:      d.Telegram,
		NotifyTimeout: 4 * time.Second,
	}
	partnerHandler := &handlers.PartnerHandler{DB: d.DB}
	adminHandler := &handlers.AdminHandler{
		DB:    d.DB,
		Feed:  d.Feed,
		ES:    d.ES,
		Index: d.ESIndex,
	}

	api := e.Group("/api/v1")
	api.Use(auth.Session(d.JWTSecret))

	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/logout", authHandler.Logout)
	api.POST("/refresh", authHandler.Refresh)

	api.GET("/products", productHandler.GetProducts)
	api.GET("/filters", productHandler.GetFilters)
	api.GET("/search", searchHandler.Search)

	api.GET("/address/suggest", geoHandler.AddressSuggest)
	api.POST("/delivery/cost", geoHandler.DeliveryCost)

	api.GET("/cart", cartHandler.GetCart)
	api.POST("/cart", cartHandler.AddToCart)
	api.PATCH("/cart/:productID", cartHandler.UpdateQuantity)
	api.DELETE("/cart/:productID", cartHandler.RemoveFromCart)
	api.DELETE("/cart", cartHandler.ClearCart)

	api.POST("/checkout", checkoutHandler.SubmitOrder)
	api.POST("/contact", contactHandler.SubmitMessage)
	api.GET("/partners", partnerHandler.ListPartners)

	private := api.Group("", auth.RequireLogin(d.JWTSecret))
	private.GET("/profile", authHandler.GetProfile)
	private.PATCH("/profile", authHandler.UpdateProfile)
	private.GET("/orders", orderHandler.ListMyOrders)

	// AdminCheck answers {ok:false} instead of the middleware's 403, so the
	// storefront can ask without treating the response as an error.
	api.GET("/admin/check", authHandler.AdminCheck)

	admin := api.Group("/admin", auth.AdminOnly(d.DB, d.JWTSecret))
	admin.GET("/orders", adminHandler.ListOrders)
	admin.PATCH("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.GET("/stats", adminHandler.Stats)
	admin.POST("/reindex", adminHandler.Reindex)
}
