// Package server exposes the task store over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/amirbrooks/wren/internal/store"
)

const maxContentSize = 1 << 20

// Tasks is the part of the store the handlers use.
type Tasks interface {
	Create(in store.CreateInput) (string, error)
	Tasks(c store.Category) ([]store.Task, error)
	Read(query string) (string, error)
	Write(query string, content string) (string, error)
	Apply(t store.Transition, query string) (string, error)
	Random(c store.Category) (string, error)
	Summarize() (string, error)
}

type Server struct {
	tasks  Tasks
	token  string
	log    *slog.Logger
	router *gin.Engine
}

type Options struct {
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token  string
	Logger *slog.Logger
}

func New(tasks Tasks, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	s := &Server{
		tasks:  tasks,
		token:  strings.TrimSpace(opts.Token),
		log:    logger,
		router: router,
	}

	router.Use(s.requestID, s.accessLog, gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/", s.auth)
	{
		api.GET("/tasks", s.handleList)
		api.POST("/tasks", s.handleCreate)
		api.GET("/tasks/:query", s.handleRead)
		api.PUT("/tasks/:query", s.handleWrite)
		api.POST("/tasks/:query/:action", s.handleTransition)
		api.GET("/random", s.handleRandom)
		api.GET("/summary", s.handleSummary)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("http server listening", "addr", addr, "auth", s.token != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader("X-Request-Id")
	if id == "" {
		id = ulid.Make().String()
	}
	c.Set("request_id", id)
	c.Header("X-Request-Id", id)
	c.Next()
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info("request",
		"request_id", c.GetString("request_id"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) auth(c *gin.Context) {
	if s.token == "" {
		c.Next()
		return
	}
	header := c.GetHeader("Authorization")
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(s.token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthorized",
		})
		return
	}
	c.Next()
}
