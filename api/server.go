// Package api provides the HTTP REST API server for abra.
//
// It exposes endpoints for entity analysis, multi-entity comparison,
// adapter discovery, and WebSocket streaming of pipeline progress.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abralabs/abra/internal/config"
	"github.com/abralabs/abra/internal/infra"
	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/internal/ingest/providers"
	"github.com/abralabs/abra/internal/insight"
	"github.com/abralabs/abra/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	engine   *insight.Engine
	registry *ingest.Registry
	wsHub    *WSHub
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config) (*Server, error) {
	registry := ingest.NewRegistry()
	if err := providers.RegisterAllTo(registry); err != nil {
		return nil, err
	}

	var cache infra.Cache
	switch cfg.Cache.Backend {
	case "memory":
		cache = infra.NewMemoryCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	case "redis":
		rc, err := infra.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB,
			time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			log.Printf("redis unavailable (%v), falling back to in-memory cache", err)
			cache = infra.NewMemoryCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
		} else {
			cache = rc
		}
	}

	srv := &Server{
		cfg:      cfg,
		engine:   insight.New(registry, insight.OptionsFrom(cfg), cache),
		registry: registry,
		wsHub:    NewWSHub(),
	}

	// Stream pipeline progress to WebSocket subscribers.
	srv.engine.OnProgress(func(ev insight.ProgressEvent) {
		srv.wsHub.Broadcast(WSMessage{Type: "progress", Data: ev})
	})

	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/compare", s.handleCompare)
		r.Get("/providers", s.handleProviders)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// APIResponse is the uniform response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":   "ok",
			"adapters": len(s.registry.List()),
		},
	})
}

// ChannelPayloadRequest is one raw provider payload in a request body.
// JSON payloads go in "payload"; non-JSON payloads (HTML listings, XML
// feeds) go in "payload_text".
type ChannelPayloadRequest struct {
	Provider    string          `json:"provider"`
	Channel     models.Channel  `json:"channel"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	PayloadText string          `json:"payload_text,omitempty"`
	DateRange   string          `json:"date_range,omitempty"`
}

func (c ChannelPayloadRequest) bytes() []byte {
	if c.PayloadText != "" {
		return []byte(c.PayloadText)
	}
	return []byte(c.Payload)
}

// SubEntityRequest is one sub-entity time-series payload.
type SubEntityRequest struct {
	SubEntityID string          `json:"sub_entity_id"`
	Provider    string          `json:"provider"`
	Payload     json.RawMessage `json:"payload"`
}

// EntityRequest carries one entity's profile and payloads.
type EntityRequest struct {
	Entity      models.EntityProfile    `json:"entity"`
	Channels    []ChannelPayloadRequest `json:"channels"`
	SubEntities []SubEntityRequest      `json:"sub_entities,omitempty"`
}

// ToInput converts the request into the engine's input shape.
func (e EntityRequest) ToInput() insight.EntityInput {
	in := insight.EntityInput{Profile: e.Entity}
	for _, cp := range e.Channels {
		in.Channels = append(in.Channels, insight.ChannelPayload{
			Provider:  cp.Provider,
			Channel:   cp.Channel,
			Payload:   cp.bytes(),
			DateRange: cp.DateRange,
		})
	}
	for _, sub := range e.SubEntities {
		in.SubEntities = append(in.SubEntities, insight.SubEntityPayload{
			SubEntityID: sub.SubEntityID,
			Provider:    sub.Provider,
			Payload:     []byte(sub.Payload),
		})
	}
	return in
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Entity.ID == "" {
		writeError(w, http.StatusBadRequest, "entity.id is required")
		return
	}
	if len(req.Channels) == 0 && len(req.SubEntities) == 0 {
		writeError(w, http.StatusBadRequest, "at least one channel payload is required")
		return
	}

	record, err := s.engine.AnalyzeEntity(r.Context(), req.ToInput())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "analysis_complete",
		Data: map[string]interface{}{
			"entity_id": record.EntityID,
			"run_id":    record.RunID,
		},
	})

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: record})
}

// CompareRequest carries the entities to rank against each other.
type CompareRequest struct {
	Entities []EntityRequest `json:"entities"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entities) < 2 {
		writeError(w, http.StatusBadRequest, "at least two entities are required")
		return
	}

	inputs := make([]insight.EntityInput, 0, len(req.Entities))
	for _, e := range req.Entities {
		if e.Entity.ID == "" {
			writeError(w, http.StatusBadRequest, "entity.id is required for every entity")
			return
		}
		inputs = append(inputs, e.ToInput())
	}

	cmp, err := s.engine.Compare(r.Context(), inputs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cmp})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.registry.List()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
