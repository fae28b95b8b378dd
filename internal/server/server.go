// Package restapi exposes haven over HTTP: the Supabase-style function
// endpoints and the session, matching, wellbeing and memory APIs.
package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/havenhealth/haven/internal/core"
	"github.com/havenhealth/haven/internal/core/dashboard"
	"github.com/havenhealth/haven/internal/core/matching"
	"github.com/havenhealth/haven/internal/core/memory"
	"github.com/havenhealth/haven/internal/core/session"
	"github.com/havenhealth/haven/internal/core/suggest"
	"github.com/havenhealth/haven/internal/core/translate"
	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
)

// Services is everything the handlers call into. Nil members disable the
// routes that need them.
type Services struct {
	Store      domain.Store
	Chatter    *core.Chatter
	Sessions   *session.Manager
	Matching   *matching.Service
	Suggest    *suggest.Generator
	Memories   *memory.Service
	Dashboard  *dashboard.Loader
	Translator *translate.Translator
}

type RouterOptions struct {
	AllowedOrigins []string
	JWTSecret      string
	// RequestLog enables gin's access log.
	RequestLog bool
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"apikey", "x-client-info", "X-Tab-ID",
		},
		ExposeHeaders: []string{"Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(svc *Services, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.RequestLog {
		r.Use(gin.Logger())
	}
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	auth := NewAuthenticator(opts.JWTSecret)

	NewHealthHandler(r, svc.Store)
	NewFunctionsHandler(r, svc, auth)

	api := r.Group("/api", auth.Middleware(), requireUser())
	NewSessionHandler(api, svc.Sessions)
	NewWellbeingHandler(api, svc)
	NewMemoryHandler(api, svc.Memories)

	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully within timeout.
func Serve(ctx context.Context, addr string, handler http.Handler, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		debuglog.Log("haven listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthHandler struct {
	store domain.Store
}

func NewHealthHandler(r *gin.Engine, store domain.Store) *HealthHandler {
	handler := &HealthHandler{store: store}
	r.GET("/health", handler.Health)
	return handler
}

func (h *HealthHandler) Health(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "none"})
		return
	}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
