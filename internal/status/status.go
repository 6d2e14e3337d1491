// Package status serves run progress over HTTP so long matrix computations
// can be watched without tailing logs.
package status

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dcac/traveltimes/internal/cache"
	"github.com/dcac/traveltimes/internal/engine"
)

type Server struct {
	coord *engine.Coordinator
	store *cache.Store
}

func NewServer(coord *engine.Coordinator, store *cache.Store) *Server {
	return &Server{coord: coord, store: store}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/progress", func(c *gin.Context) {
		p := s.coord.Progress()
		entries, err := s.store.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"run_id":        s.coord.RunID,
			"total":         p.Total,
			"processed":     p.Processed,
			"remaining":     p.Remaining,
			"failed":        p.Failed,
			"cache_entries": entries,
		})
	})

	return r
}

// Start runs the status server in the background until ctx is cancelled.
// It is best-effort observability: listen failures are logged, never fatal.
func (s *Server) Start(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr, Handler: s.SetupRouter()}
	go func() {
		log.Printf("status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background()) //nolint:errcheck // shutdown is best-effort
	}()
}
