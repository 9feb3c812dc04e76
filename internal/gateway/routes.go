package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead is the body allowance for form fields and part headers
// on top of the image itself.
const multipartOverhead = 1 << 20

type sendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type memberView struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

func (s *Server) RegisterRoutes() {
	r := s.router

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "wabridge %s: start a session at /start/:identity\n", s.ID)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"node":    s.ID,
			"version": "0.1.0",
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		counts := s.registry.Counts()
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"uptime":    time.Since(s.Started).String(),
			"node":      s.ID,
			"sessions":  counts,
			"observers": s.hub.ObserverCount(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", s.requireToken())
	api.GET("/start/:identity", s.handleStart)
	api.GET("/status/:identity", s.handleStatus)
	api.GET("/qr-code/:identity", s.handleQR)
	api.GET("/sessions", s.handleSessions)
	api.GET("/groups/:identity", s.handleGroups)
	api.GET("/group-members/:identity/:groupId", s.handleGroupMembers)
	api.POST("/send/:identity", s.handleSend)
	api.POST("/send-image", s.handleSendImage)
	api.GET("/ws", s.handleWS)
}

func (s *Server) handleStart(c *gin.Context) {
	identity := c.Param("identity")
	snap, err := s.registry.Start(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	status := "started"
	if snap.Connected() {
		status = "connected"
	}
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{
			"identity": snap.Identity,
			"status":   snap.Status,
			"state":    snap.State,
			"result":   status,
		})
		return
	}
	q := url.Values{}
	q.Set("session", snap.Identity)
	q.Set("status", status)
	c.Redirect(http.StatusFound, "/?"+q.Encode())
}

func (s *Server) handleStatus(c *gin.Context) {
	identity := c.Param("identity")
	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"status":   s.registry.Status(identity),
	})
}

func (s *Server) handleQR(c *gin.Context) {
	identity := c.Param("identity")
	code, issued, err := s.registry.QR(identity)
	if err != nil {
		respondError(c, err)
		return
	}
	issuedAt := ""
	if !issued.IsZero() && code != "" {
		issuedAt = issued.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"qr":       code,
		"issuedAt": issuedAt,
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": s.registry.List(),
	})
}

func (s *Server) handleGroups(c *gin.Context) {
	groups, err := s.registry.Groups(c.Request.Context(), c.Param("identity"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"groups":  groups,
	})
}

func (s *Server) handleGroupMembers(c *gin.Context) {
	info, err := s.registry.GroupMembers(c.Request.Context(), c.Param("identity"), c.Param("groupId"))
	if err != nil {
		respondError(c, err)
		return
	}
	members := make([]memberView, 0, len(info.Participants))
	for _, p := range info.Participants {
		members = append(members, memberView{
			ID:           p.ID,
			IsAdmin:      p.IsAdmin(),
			IsSuperAdmin: p.IsSuperAdmin(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"group":        info.Name,
		"participants": members,
	})
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Number) == "" || req.Message == "" {
		respondBadRequest(c, "number and message are required", nil)
		return
	}

	identity := c.Param("identity")
	if err := s.registry.SendText(c.Request.Context(), identity, req.Number, req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"to":      req.Number,
	})
}

func (s *Server) handleSendImage(c *gin.Context) {
	limit := s.maxUpload + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "image too large", Detail: err.Error()})
			return
		}
		respondBadRequest(c, "invalid multipart body", err)
		return
	}
	defer func() { _ = c.Request.MultipartForm.RemoveAll() }()

	number := strings.TrimSpace(c.PostForm("number"))
	if number == "" {
		respondBadRequest(c, "number is required", nil)
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		respondBadRequest(c, "image file is required", err)
		return
	}
	if header.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "image too large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, "image file unreadable", err)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, s.maxUpload+1)); err != nil {
		respondBadRequest(c, "image file unreadable", err)
		return
	}
	if int64(buf.Len()) > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "image too large"})
		return
	}

	img := protocol.Image{
		Data:     buf.Bytes(),
		MimeType: header.Header.Get("Content-Type"),
		Caption:  c.PostForm("caption"),
	}
	if err := s.registry.SendImage(c.Request.Context(), s.defaultIdentity, number, img); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"to":      number,
	})
}

func (s *Server) handleWS(c *gin.Context) {
	// The upgrader writes its own HTTP error on failure.
	_ = s.hub.ServeWS(c.Writer, c.Request)
}
