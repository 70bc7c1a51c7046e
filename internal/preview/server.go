package preview

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var validSlug = regexp.MustCompile(`^[a-z0-9-]{1,40}$`)

// Server serves rendered previews from the preview directory.
type Server struct {
	dir      string
	origins  []string
	renderer *Renderer
	log      *logger.Logger
}

// NewServer creates a preview server over the renderer's output directory.
func NewServer(r *Renderer, origins []string, log *logger.Logger) *Server {
	return &Server{dir: r.dir, origins: origins, renderer: r, log: log}
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(s.log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.CORS(s.origins))
	engine.Use(httpkit.NewIPRateLimiter(rate.Limit(20), 40, s.log).RateLimit())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/", s.index)
	engine.GET("/preview/:slug/*rest", s.page)

	return engine
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("preview server listening", "addr", addr, "dir", s.dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) index(c *gin.Context) {
	slugs, err := s.slugs()
	if httpkit.HandleError(c, err) {
		return
	}
	var buf bytes.Buffer
	if err := s.renderer.tmpl.ExecuteTemplate(&buf, "index", slugs); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "render index", err))
		return
	}
	c.Data(http.StatusOK, htmlType, buf.Bytes())
}

func (s *Server) page(c *gin.Context) {
	slug := c.Param("slug")
	rest := c.Param("rest")
	if !validSlug.MatchString(slug) || (rest != "/" && rest != "/"+indexFile) {
		httpkit.HandleError(c, apperr.NotFound("preview not found"))
		return
	}

	body, err := os.ReadFile(filepath.Join(s.dir, "preview", slug, indexFile))
	if err != nil {
		httpkit.HandleError(c, apperr.NotFound("preview not found"))
		return
	}
	c.Data(http.StatusOK, htmlType, body)
}

func (s *Server) slugs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "preview"))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && validSlug.MatchString(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
