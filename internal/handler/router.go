package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/bidmarket-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса bidmarket.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/balance", h.GetBalance)
			r.Get("/shipping-address", h.GetShippingAddress)
			r.Put("/shipping-address", h.SaveShippingAddress)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/sold", h.ListSoldProducts)
		r.Get("/{slug}", h.GetProduct)
		r.Get("/{id:[0-9]+}/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.CreateProduct)
			r.Get("/user", h.ListUserProducts)
			r.Get("/won", h.ListWonProducts)
			r.Delete("/{id:[0-9]+}", h.DeleteProduct)
			r.Post("/{id:[0-9]+}/reviews", h.UpsertReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Get("/", h.ListAllProducts)
			r.Patch("/verify/{id:[0-9]+}", h.VerifyProduct)
		})
	})

	r.Route("/api/bidding", func(r chi.Router) {
		r.Get("/{productId:[0-9]+}", h.GetBidHistory)
		r.Get("/{productId:[0-9]+}/highest", h.GetHighestBid)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/bid", h.PlaceBid)
			r.Post("/sell", h.SellProduct)

			r.Post("/cart", h.AddCartItem)
			r.Get("/cart", h.GetCartItems)
			r.Delete("/cart/{id:[0-9]+}", h.RemoveCartItem)

			r.Post("/place-order", h.PlaceOrder)
			r.Get("/orders/history", h.GetOrderHistory)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{id:[0-9]+}", h.GetCategory)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Post("/", h.CreateCategory)
			r.Put("/{id:[0-9]+}", h.UpdateCategory)
			r.Delete("/{id:[0-9]+}", h.DeleteCategory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
