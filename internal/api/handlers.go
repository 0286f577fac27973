package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"skychat/internal/ai"
	"skychat/internal/auth"
	"skychat/internal/blob"
	"skychat/internal/chat"
	"skychat/internal/imagegen"
	"skychat/internal/kv"
	"skychat/internal/models"
	"skychat/internal/theme"
	"skychat/internal/upload"
)

const maxUploadBytes = 10 << 20

// Handler wires HTTP routes to per-user state managers. Each user gets an
// isolated keyspace in the remote store and their own chat manager, image
// ledger, and upload session, created on first use.
type Handler struct {
	auth  *auth.Service
	store kv.Store
	local kv.Store
	ai    ai.Client
	files blob.Storage
	opts  Options

	mu      sync.Mutex
	chats   map[string]*chat.Manager
	ledgers map[string]*imagegen.Ledger
	uploads map[string]*upload.Session
}

// Options tunes the per-user managers.
type Options struct {
	SnapshotEvery int
	HistoryLimit  int
	DefaultModel  string
}

// NewHandler constructs a Handler instance.
func NewHandler(authService *auth.Service, store, local kv.Store, aiClient ai.Client, files blob.Storage, opts Options) *Handler {
	return &Handler{
		auth:    authService,
		store:   store,
		local:   local,
		ai:      aiClient,
		files:   files,
		opts:    opts,
		chats:   make(map[string]*chat.Manager),
		ledgers: make(map[string]*imagegen.Ledger),
		uploads: make(map[string]*upload.Session),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/models", h.listModels)

	user := api.Group("", h.auth.Middleware())
	user.GET("/user", h.currentUser)
	user.POST("/logout", h.logout)

	user.GET("/chat", h.getCurrentChat)
	user.POST("/chat/messages", h.sendMessage)
	user.POST("/chat/new", h.newChat)
	user.POST("/chat/save", h.saveChat)
	user.POST("/chat/export", h.exportChat)
	user.PUT("/chat/model", h.setModel)
	user.GET("/chats", h.listHistory)
	user.POST("/chats/:chat_id/load", h.loadChat)
	user.DELETE("/chats/:chat_id", h.deleteChat)

	user.GET("/images", h.listImages)
	user.POST("/images/generate", h.generateImage)
	user.DELETE("/images/:image_id", h.deleteImage)

	user.POST("/uploads", h.uploadImages)
	user.GET("/uploads", h.listUploads)
	user.POST("/uploads/:upload_id/describe", h.describeUpload)
	user.POST("/uploads/:upload_id/ocr", h.ocrUpload)
	user.DELETE("/uploads/:upload_id", h.deleteUpload)

	user.GET("/theme", h.getTheme)
	user.PUT("/theme", h.setTheme)
}

func (h *Handler) authorizedUser(c *gin.Context) (*auth.User, bool) {
	user, ok := auth.UserFromContext(c)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	return user, true
}

func (h *Handler) userStore(userID string) kv.Store {
	return kv.Namespaced(h.store, "user:"+userID)
}

func (h *Handler) chatManager(c *gin.Context, user *auth.User) *chat.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.chats[user.ID]; ok {
		return m
	}
	m := chat.NewManager(h.userStore(user.ID), h.ai, h.files, chat.Options{
		Owner:         user.ID,
		SnapshotEvery: h.opts.SnapshotEvery,
		HistoryLimit:  h.opts.HistoryLimit,
		DefaultModel:  h.opts.DefaultModel,
	})
	m.LoadCurrentSession(c.Request.Context())
	h.chats[user.ID] = m
	return m
}

func (h *Handler) imageLedger(c *gin.Context, user *auth.User) *imagegen.Ledger {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.ledgers[user.ID]; ok {
		return l
	}
	l := imagegen.NewLedger(h.userStore(user.ID), h.ai, imagegen.Options{})
	l.RegisterFallbackListener(func() {
		log.Printf("user %s switched to test mode image generation", user.ID)
	})
	l.Load(c.Request.Context())
	h.ledgers[user.ID] = l
	return l
}

func (h *Handler) uploadSession(user *auth.User) *upload.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.uploads[user.ID]; ok {
		return s
	}
	s := upload.NewSession(h.ai, h.files, user.ID)
	h.uploads[user.ID] = s
	return s
}

func (h *Handler) themeStore(userID string) *theme.Store {
	var local kv.Store
	if h.local != nil {
		local = kv.Namespaced(h.local, "user:"+userID)
	}
	return theme.NewStore(h.userStore(userID), local, nil)
}

// Model catalog

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": models.Catalog(), "default": h.opts.DefaultModel})
}

// Identity

func (h *Handler) currentUser(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) logout(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	token, _ := auth.TokenFromContext(c)
	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		log.Printf("sign out %s: %v", user.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

// Chat

func (h *Handler) getCurrentChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	m := h.chatManager(c, user)
	c.JSON(http.StatusOK, gin.H{
		"id":       m.SessionID(),
		"model":    m.Model(),
		"messages": m.Messages(),
	})
}

type sendMessageRequest struct {
	Content string               `json:"content"`
	Model   string               `json:"model"`
	Image   *models.MessageImage `json:"image"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content required"})
		return
	}

	m := h.chatManager(c, user)
	if req.Model != "" {
		m.SetModel(req.Model)
	}
	userMsg := m.AppendUserMessage(c.Request.Context(), req.Content, req.Image)
	reply := m.RequestAssistantReply(c.Request.Context(), req.Content)

	c.JSON(http.StatusOK, gin.H{
		"session_id": m.SessionID(),
		"messages":   []models.ChatMessage{userMsg, reply},
	})
}

func (h *Handler) newChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	m := h.chatManager(c, user)
	m.StartNewChat(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "new chat started"})
}

func (h *Handler) saveChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	m := h.chatManager(c, user)
	if err := m.SaveNow(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "session_id": m.SessionID()})
}

func (h *Handler) exportChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	m := h.chatManager(c, user)
	filename, err := m.Export(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if err == chat.ErrNothingToExport {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename})
}

type setModelRequest struct {
	Model string `json:"model"`
}

func (h *Handler) setModel(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req setModelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model required"})
		return
	}
	m := h.chatManager(c, user)
	m.SetModel(req.Model)
	c.JSON(http.StatusOK, gin.H{"model": m.Model()})
}

func (h *Handler) listHistory(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	m := h.chatManager(c, user)
	history := m.History(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"chats": history, "count": len(history)})
}

func (h *Handler) loadChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	m := h.chatManager(c, user)
	for _, session := range m.History(c.Request.Context()) {
		if session.ID == chatID {
			m.LoadFromHistory(c.Request.Context(), session)
			c.JSON(http.StatusOK, gin.H{
				"id":       m.SessionID(),
				"model":    m.Model(),
				"messages": m.Messages(),
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
}

func (h *Handler) deleteChat(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	m := h.chatManager(c, user)
	if err := m.DeleteFromHistory(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Image generation

func (h *Handler) listImages(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	l := h.imageLedger(c, user)
	c.JSON(http.StatusOK, gin.H{"images": l.Records(), "test_mode": l.TestMode()})
}

type generateImageRequest struct {
	Prompt   string `json:"prompt"`
	TestMode *bool  `json:"test_mode"`
}

func (h *Handler) generateImage(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt required"})
		return
	}

	l := h.imageLedger(c, user)
	if req.TestMode != nil {
		l.SetTestMode(*req.TestMode)
	}
	record, warning, err := l.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		msg := "image generation failed, please try again"
		if ai.IsInsufficientFunds(err) {
			msg = "account credit is not sufficient; switch to test mode or top up"
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msg, "test_mode": l.TestMode()})
		return
	}

	resp := gin.H{"image": record, "test_mode": l.TestMode()}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteImage(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	imageID, err := strconv.ParseInt(c.Param("image_id"), 10, 64)
	if err != nil || imageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}
	l := h.imageLedger(c, user)
	l.Delete(c.Request.Context(), imageID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Uploads and analysis

func (h *Handler) uploadImages(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	session := h.uploadSession(user)
	var uploaded []models.UploadedImage
	var failures []gin.H
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			failures = append(failures, gin.H{"name": fh.Filename, "error": "file too large"})
			continue
		}
		src, err := fh.Open()
		if err != nil {
			failures = append(failures, gin.H{"name": fh.Filename, "error": "could not read file"})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
		src.Close()
		if err != nil {
			failures = append(failures, gin.H{"name": fh.Filename, "error": "could not read file"})
			continue
		}
		img, err := session.Add(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			failures = append(failures, gin.H{"name": fh.Filename, "error": err.Error()})
			continue
		}
		uploaded = append(uploaded, img)
	}

	if len(uploaded) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select image files (JPG, PNG, GIF, WebP)", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": uploaded, "failures": failures})
}

func (h *Handler) listUploads(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": h.uploadSession(user).Images()})
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) describeUpload(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	session := h.uploadSession(user)
	img, found := session.Find(c.Param("upload_id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	var req analyzeRequest
	_ = c.ShouldBindJSON(&req)

	m := h.chatManager(c, user)
	prompt, response := session.Describe(c.Request.Context(), img, req.Prompt, m.Model())
	m.AppendExchange(c.Request.Context(), prompt, response, &models.MessageImage{Name: img.Name, URL: img.PreviewURL})

	c.JSON(http.StatusOK, gin.H{"prompt": prompt, "response": response, "session_id": m.SessionID()})
}

func (h *Handler) ocrUpload(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	session := h.uploadSession(user)
	img, found := session.Find(c.Param("upload_id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}

	m := h.chatManager(c, user)
	prompt, response := session.ExtractText(c.Request.Context(), img, m.Model())
	m.AppendExchange(c.Request.Context(), prompt, response, &models.MessageImage{Name: img.Name, URL: img.PreviewURL})

	c.JSON(http.StatusOK, gin.H{"prompt": prompt, "response": response, "session_id": m.SessionID()})
}

func (h *Handler) deleteUpload(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	h.uploadSession(user).Remove(c.Param("upload_id"))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Theme

func (h *Handler) getTheme(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	s := h.themeStore(user.ID)
	c.JSON(http.StatusOK, gin.H{"theme": s.Load(c.Request.Context())})
}

type setThemeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handler) setTheme(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req setThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s := h.themeStore(user.ID)
	if err := s.Set(c.Request.Context(), models.Theme(req.Theme)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("could not save theme: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}
