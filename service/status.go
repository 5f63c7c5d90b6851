package service

import (
	"net/http"

	"github.com/CharellKing/ela-move/config"
	"github.com/gin-gonic/gin"
)

// StatusServer exposes the run report over HTTP for operators watching a
// long migration. It is read-only and never part of the migration decision
// path.
type StatusServer struct {
	Engine  *gin.Engine
	Address string

	report *Report
}

func basicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, hasAuth := c.Request.BasicAuth()
		if hasAuth && user == username && pass == password {
			c.Next()
		} else {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}
}

func NewStatusServer(cfg *config.StatusCfg, report *Report) *StatusServer {
	engine := gin.Default()
	if cfg.User != "" {
		engine.Use(basicAuth(cfg.User, cfg.Password))
	}

	server := &StatusServer{
		Engine:  engine,
		Address: cfg.Address,
		report:  report,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/status", server.onStatus)

	return server
}

func (s *StatusServer) onStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run_id":  s.report.RunID(),
		"summary": s.report.Summary(),
		"indices": s.report.Results(),
	})
}

func (s *StatusServer) Run() {
	_ = s.Engine.Run(s.Address)
}
