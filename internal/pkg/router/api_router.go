package router

import (
	"github.com/FinnKramer/PawMarket/app/controllers"
	"github.com/FinnKramer/PawMarket/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Public catalog
	v1.Get("/listings", controllers.HandleBrowseListings)
	v1.Get("/listings/:uuid", controllers.HandleGetListing)
	v1.Get("/breeds", controllers.HandleListBreeds)

	// Account
	v1.Get("/me", middleware.RequireAPISessionAuth, controllers.HandleMe)

	// Listing management
	v1.Post("/listings", middleware.RequireAPISessionAuth, controllers.HandleCreateListing)
	v1.Get("/my/listings", middleware.RequireAPISessionAuth, controllers.HandleMyListings)
	v1.Patch("/listings/:uuid", middleware.RequireAPISessionAuth, controllers.HandleUpdateListing)
	v1.Post("/listings/:uuid/publish", middleware.RequireAPISessionAuth, controllers.HandlePublishListing)
	v1.Delete("/listings/:uuid", middleware.RequireAPISessionAuth, controllers.HandleDeleteListing)
	v1.Post("/listings/:uuid/reactivate", middleware.RequireAPISessionAuth, controllers.HandleReactivateListing)

	// Listing photos
	v1.Post("/listings/:uuid/photos", middleware.RequireAPISessionAuth, controllers.HandleUploadListingPhoto)
	v1.Delete("/listings/:uuid/photos/:photoID", middleware.RequireAPISessionAuth, controllers.HandleDeleteListingPhoto)

	// Billing
	v1.Post("/billing/checkout", middleware.RequireAPISessionAuth, controllers.HandleCreateCheckout)
	v1.Get("/billing/subscriptions", middleware.RequireAPISessionAuth, controllers.HandleListSubscriptions)
	v1.Post("/billing/subscriptions/cancel", middleware.RequireAPISessionAuth, controllers.HandleCancelSubscription)

	// Admin moderation
	admin := v1.Group("/admin", middleware.RequireAPISessionAuth, requireAdminJSON)
	admin.Get("/listings/pending", controllers.HandleAdminPendingListings)
	admin.Post("/listings/:uuid/approve", controllers.HandleAdminApproveListing)
	admin.Post("/listings/:uuid/reject", controllers.HandleAdminRejectListing)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// requireAdminJSON is the JSON variant of the admin guard: 403 instead of a
// redirect.
func requireAdminJSON(c *fiber.Ctx) error {
	if isAdmin, ok := c.Locals(controllers.USER_IS_ADMIN).(bool); !ok || !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access required"})
	}
	return c.Next()
}
