package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	custommw "github.com/weddingphotos/server/internal/middleware"
)

// Router bundles the handlers and cross-cutting middleware of the HTTP API
type Router struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Uploads   *UploadHandler
	Gallery   *GalleryHandler
	WebSocket *WebSocketHandler

	Sessions   custommw.SessionResolver
	CookieName string
	// AuthLimiter throttles the sign-in endpoints per client address
	AuthLimiter *custommw.IPRateLimiter
	// Middleware runs after the chi defaults, e.g. tracing and metrics
	Middleware []func(http.Handler) http.Handler
}

// Handler builds the chi router
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range rt.Middleware {
		r.Use(mw)
	}
	r.Use(custommw.SessionAuth(rt.Sessions, rt.CookieName))

	r.Get("/health", rt.Health.HealthCheck)
	r.Get("/api/health", rt.Health.HealthCheck)
	r.Get("/api/version", VersionInfo)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if rt.AuthLimiter != nil {
				r.Use(rt.AuthLimiter.Middleware)
			}
			r.Post("/magic-link", rt.Auth.RequestMagicLink)
			r.Post("/verify-code", rt.Auth.VerifyCode)
		})
		r.Get("/confirm", rt.Auth.Confirm)
		r.Get("/session", rt.Auth.Session)
		r.Post("/logout", rt.Auth.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(custommw.RequireUser)

		r.Get("/ws", rt.WebSocket.HandleConnection)

		r.Route("/api/uploads", func(r chi.Router) {
			r.Post("/negotiate", rt.Uploads.Negotiate)
			r.Post("/finalize", rt.Uploads.Finalize)
		})

		r.Get("/api/albums", rt.Gallery.ListAlbums)
		r.Get("/api/albums/{albumId}/items", rt.Gallery.AlbumItems)
		r.Get("/api/gallery/items", rt.Gallery.GalleryItems)
		r.Get("/api/library/items", rt.Gallery.LibraryItems)

		r.Route("/api/items", func(r chi.Router) {
			r.Post("/download-urls", rt.Gallery.BulkDownloadURLs)
			r.Get("/{itemId}/download-url", rt.Gallery.DownloadURL)
			r.Get("/{itemId}/display-url", rt.Gallery.DisplayURL)
			r.Get("/{itemId}/image", rt.Gallery.Image)
		})
	})

	return r
}
