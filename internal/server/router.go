package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anvilops/anvilctl/internal/metrics"
	"github.com/anvilops/anvilctl/internal/supervisor"
)

// Router provides embeddable HTTP handlers over the supervisor.
// Endpoints:
//
//	GET  {basePath}/status
//	GET  {basePath}/healthz
//	GET  {basePath}/metrics
//	POST {basePath}/start
//	POST {basePath}/stop
//	POST {basePath}/save
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a Router with configurable basePath.
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/save", r.handleSave)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK  bool `json:"ok"`
	PID int  `json:"pid,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.sup.Status())
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStart(c *gin.Context) {
	pid, err := r.sup.Start(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true, PID: pid})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.sup.Stop(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrNotRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleSave(c *gin.Context) {
	if err := r.sup.Save(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrNotRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
