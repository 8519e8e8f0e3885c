package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/wren/internal/store"
)

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type writeRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleList(c *gin.Context) {
	cat, err := store.ParseCategory(c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	tasks, err := s.tasks.Tasks(cat)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  cat,
		"tasks":   tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	limitBody(c)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if len(req.Content) > maxContentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "content exceeds maximum size of 1MB",
		})
		return
	}
	in := store.CreateInput{Title: req.Title, Content: req.Content}
	if req.Content == "" {
		in = store.SplitMessage(req.Title)
	}
	name, err := s.tasks.Create(in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"name":    name,
		"message": "created task: " + name,
	})
}

func (s *Server) handleRead(c *gin.Context) {
	query := c.Param("query")
	content, err := s.tasks.Read(query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   query,
		"content": content,
	})
}

func (s *Server) handleWrite(c *gin.Context) {
	var req writeRequest
	limitBody(c)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if len(req.Content) > maxContentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "content exceeds maximum size of 1MB",
		})
		return
	}
	name, err := s.tasks.Write(c.Param("query"), req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
		"message": "updated task: " + name,
	})
}

func (s *Server) handleTransition(c *gin.Context) {
	t, ok := store.TransitionByName(c.Param("action"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "unknown action " + c.Param("action"),
		})
		return
	}
	msg, err := s.tasks.Apply(t, c.Param("query"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msg,
	})
}

func (s *Server) handleRandom(c *gin.Context) {
	cat, err := store.ParseCategory(c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	name, err := s.tasks.Random(cat)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.tasks.Summarize()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

// limitBody caps the request body so oversized payloads fail while decoding.
func limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxContentSize+1024)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", c.GetString("request_id"), "err", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrEmptyDirectory),
		errors.Is(err, store.ErrNoTasks):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
