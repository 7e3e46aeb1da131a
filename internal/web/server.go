package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"image-squeezer-go/internal/batch"
	"image-squeezer-go/internal/config"
	"image-squeezer-go/internal/imagemeta"
	"image-squeezer-go/internal/metrics"
	"image-squeezer-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	archiveEntryPrefix = "compressed-"
	archiveFileName    = "compressed-images.zip"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	orch  *batch.Orchestrator
	stats *statistics.Statistics

	sessionsMu sync.RWMutex
	sessions   map[uuid.UUID]*batch.Session
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type QualityRequest struct {
	Quality float64 `json:"quality"`
}

// ItemView is the API shape of one result item.
type ItemView struct {
	Index          int             `json:"index"`
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	MediaType      string          `json:"media_type"`
	OriginalSize   int64           `json:"original_size"`
	Outcome        string          `json:"outcome,omitempty"`
	CompressedSize int64           `json:"compressed_size,omitempty"`
	Quality        float64         `json:"quality,omitempty"`
	SavedPercent   float64         `json:"saved_percent,omitempty"`
	Error          string          `json:"error,omitempty"`
	Meta           *imagemeta.Info `json:"meta,omitempty"`
}

// SessionView is the API shape of one session.
type SessionView struct {
	ID         string     `json:"id"`
	Quality    float64    `json:"quality"`
	Processing bool       `json:"processing"`
	FileCount  int        `json:"file_count"`
	Items      []ItemView `json:"items"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, orch *batch.Orchestrator, stats *statistics.Statistics) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		router:   mux.NewRouter(),
		orch:     orch,
		stats:    stats,
		sessions: make(map[uuid.UUID]*batch.Session),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/files", s.handleUploadFiles).Methods("POST")
	api.HandleFunc("/sessions/{id}/quality", s.handleSetQuality).Methods("POST")
	api.HandleFunc("/sessions/{id}/items/{index}/recompress", s.handleRecompressItem).Methods("POST")
	api.HandleFunc("/sessions/{id}/items/{index}/download", s.handleDownloadItem).Methods("GET")
	api.HandleFunc("/sessions/{id}/archive", s.handleDownloadArchive).Methods("GET")

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sessionsMu.RLock()
	sessionCount := len(s.sessions)
	s.sessionsMu.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"sessions":   sessionCount,
			"statistics": s.stats.Snapshot(),
		},
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := batch.NewSession(s.cfg.Compression.DefaultQuality)

	s.sessionsMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionsMu.Unlock()

	s.log.WithField("session", sess.ID).Debug("Session created")

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"id":      sess.ID.String(),
			"quality": sess.Quality(),
		},
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    s.sessionView(sess),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID)
	s.sessionsMu.Unlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Session deleted",
	})
}

// handleUploadFiles receives a new selection, runs it through the selection
// filter and starts a full-batch compression pass. The pass runs
// asynchronously; clients follow its lifecycle over the websocket or by
// polling the session until processing turns false.
func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	maxUpload := int64(s.cfg.Server.MaxUploadMB) << 20
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.writeError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["images"]
	modTimes := r.MultipartForm.Value["last_modified"]

	candidates := make([]batch.SourceFile, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, fmt.Sprintf("Failed to read upload %q", fh.Filename), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, fmt.Sprintf("Failed to read upload %q", fh.Filename), http.StatusBadRequest)
			return
		}

		mediaType := fh.Header.Get("Content-Type")
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}

		modTime := time.Now()
		if i < len(modTimes) {
			if ms, err := strconv.ParseInt(modTimes[i], 10, 64); err == nil {
				modTime = time.UnixMilli(ms)
			}
		}

		candidates = append(candidates, batch.SourceFile{
			Name:      fh.Filename,
			MediaType: mediaType,
			Size:      int64(len(data)),
			ModTime:   modTime,
			Data:      data,
		})
	}

	files := batch.Select(candidates, s.cfg.Compression.AcceptPatterns, s.cfg.Compression.MaxBatchSize)
	quality := sess.Quality()
	gen := sess.BeginPass(files)

	go s.runPassAsync(sess, gen, files, quality)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
		Data: map[string]interface{}{
			"accepted": len(files),
			"dropped":  len(candidates) - len(files),
		},
	})
}

// handleSetQuality updates the batch-wide quality and re-runs the full pass
// over the current batch.
func (s *Server) handleSetQuality(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	q, ok := s.decodeQuality(w, r)
	if !ok {
		return
	}

	sess.SetQuality(q)
	files := sess.Files()
	gen := sess.BeginPass(files)

	go s.runPassAsync(sess, gen, files, q)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
		Data: map[string]interface{}{
			"quality": q,
		},
	})
}

// handleRecompressItem re-runs a single item at a per-item quality override.
// Only that item's entry changes; a failure surfaces as an error outcome.
func (s *Server) handleRecompressItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, ok := s.itemIndex(w, r)
	if !ok {
		return
	}

	q, ok := s.decodeQuality(w, r)
	if !ok {
		return
	}

	item, err := sess.Item(index)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	updated := s.orch.Recompress(r.Context(), item.Original, q)
	if err := sess.ReplaceItem(index, updated); err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	view := s.itemView(index, updated)
	s.broadcastWSMessage("item_updated", map[string]interface{}{
		"session": sess.ID.String(),
		"item":    view,
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    view,
	})
}

func (s *Server) handleDownloadItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, ok := s.itemIndex(w, r)
	if !ok {
		return
	}

	item, err := sess.Item(index)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if item.Outcome != batch.OutcomeCompressed || item.Blob == nil {
		s.writeError(w, "Item has no compressed result", http.StatusConflict)
		return
	}

	name := batch.ArchiveEntryName(item, archiveEntryPrefix)
	w.Header().Set("Content-Type", item.Blob.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(item.Blob.Size(), 10))
	w.Write(item.Blob.Data)
}

// handleDownloadArchive packages all compressed items into a zip. An archive
// failure is reported once to the caller; the result batch stays untouched
// and per-item downloads remain available.
func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	results := sess.Results()
	data, err := batch.BuildArchive(results, archiveEntryPrefix)
	if err != nil {
		s.log.WithField("session", sess.ID).Errorf("Archive build failed: %v", err)
		s.writeError(w, "Failed to build archive", http.StatusInternalServerError)
		return
	}

	s.stats.IncrementArchivesBuilt()
	metrics.ArchivesBuilt.Inc()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// runPassAsync executes one full-batch pass and commits its results if the
// pass generation is still the latest. A superseded pass runs to completion
// but its results are discarded.
func (s *Server) runPassAsync(sess *batch.Session, gen int64, files []batch.SourceFile, quality float64) {
	start := time.Now()
	metrics.ActivePasses.Inc()
	defer metrics.ActivePasses.Dec()

	s.broadcastWSMessage("pass_started", map[string]interface{}{
		"session": sess.ID.String(),
		"files":   len(files),
		"quality": quality,
	})

	results, err := s.orch.CompressAll(context.Background(), files, quality)
	if err != nil {
		sess.AbortPass()
		s.log.WithField("session", sess.ID).Errorf("Compression pass failed: %v", err)
		s.broadcastWSMessage("pass_error", map[string]interface{}{
			"session": sess.ID.String(),
			"error":   err.Error(),
		})
		return
	}

	if !sess.CommitPass(gen, results) {
		s.stats.IncrementPassesSuperseded()
		s.log.WithField("session", sess.ID).Debug("Pass superseded, results discarded")
		s.broadcastWSMessage("pass_superseded", map[string]interface{}{
			"session": sess.ID.String(),
		})
		return
	}

	s.stats.IncrementPassesRun()
	metrics.PassDuration.Observe(time.Since(start).Seconds())

	s.broadcastWSMessage("pass_completed", map[string]interface{}{
		"session": sess.ID.String(),
		"result":  s.sessionView(sess),
	})
}

// session resolves the session from the request path, writing the error
// response itself when the id is invalid or unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*batch.Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "Invalid session id", http.StatusBadRequest)
		return nil, false
	}

	s.sessionsMu.RLock()
	sess, ok := s.sessions[id]
	s.sessionsMu.RUnlock()

	if !ok {
		s.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		s.writeError(w, "Invalid item index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func (s *Server) decodeQuality(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req QualityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return 0, false
	}
	if req.Quality < 0.10 || req.Quality > 0.90 {
		s.writeError(w, "Quality must be between 0.10 and 0.90", http.StatusBadRequest)
		return 0, false
	}
	return req.Quality, true
}

func (s *Server) sessionView(sess *batch.Session) SessionView {
	results := sess.Results()
	items := make([]ItemView, len(results))
	for i, item := range results {
		items[i] = s.itemView(i, item)
	}
	return SessionView{
		ID:         sess.ID.String(),
		Quality:    sess.Quality(),
		Processing: sess.Processing(),
		FileCount:  len(sess.Files()),
		Items:      items,
	}
}

func (s *Server) itemView(index int, item batch.ResultItem) ItemView {
	view := ItemView{
		Index:        index,
		Key:          item.Key,
		Name:         item.Original.Name,
		MediaType:    item.Original.MediaType,
		OriginalSize: item.Original.Size,
		Outcome:      string(item.Outcome),
		Error:        item.Err,
	}
	if item.Outcome == batch.OutcomeCompressed && item.Blob != nil {
		view.CompressedSize = item.Blob.Size()
		view.Quality = item.Quality
		if item.Original.Size > 0 && view.CompressedSize < item.Original.Size {
			view.SavedPercent = float64(item.Original.Size-view.CompressedSize) * 100 / float64(item.Original.Size)
		}
	}
	if info, err := imagemeta.Probe(item.Original.Data); err == nil {
		view.Meta = info
	}
	return view
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
