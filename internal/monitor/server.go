package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zde37/torus/internal/ring"
	"github.com/zde37/torus/pkg/logging"
)

// Server is the observability HTTP surface for one ring node.
type Server struct {
	node   *ring.Node
	hub    *Hub
	logger *logging.Logger

	httpServer *http.Server
}

// NewServer builds a monitoring server over node, publishing ring events
// through its own websocket hub.
func NewServer(node *ring.Node, logger *logging.Logger) *Server {
	return &Server{
		node:   node,
		hub:    NewHub(logger),
		logger: logger.WithFields(logging.Fields{"component": "monitor"}),
	}
}

// Broadcaster exposes the server's hub so callers can wire it into
// ring.Node.SetEventBroadcaster before the ring starts publishing.
func (s *Server) Broadcaster() *Hub { return s.hub }

// Start begins serving HTTP on port in the background. Binding happens in
// that background goroutine, so a bind failure is logged rather than
// returned.
func (s *Server) Start(port int) error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ring", s.handleRing)
	mux.HandleFunc("/events", s.hub.ServeWebSocket)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Int("port", port).Msg("starting monitor server")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("monitor server error")
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server and websocket hub down.
func (s *Server) Stop() error {
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"node_id": s.node.ID().Text(16),
	})
}

func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	snap := s.node.RingSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshotDTO(snap)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode ring snapshot")
	}
}

// peerDTO is the JSON-safe rendering of a ring.Peer.
type peerDTO struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type fingerDTO struct {
	Start string   `json:"start"`
	Node  *peerDTO `json:"node"`
}

type snapshotJSON struct {
	Self          *peerDTO    `json:"self"`
	Predecessor   *peerDTO    `json:"predecessor,omitempty"`
	SuccessorList []*peerDTO  `json:"successor_list"`
	Fingers       []fingerDTO `json:"fingers"`
	Entries       int         `json:"entries"`
	Hits          int64       `json:"hits"`
	Misses        int64       `json:"misses"`
}

func toPeerDTO(p *ring.Peer) *peerDTO {
	if p == nil {
		return nil
	}
	return &peerDTO{ID: p.ID.Text(16), Address: p.Address()}
}

func snapshotDTO(snap ring.Snapshot) snapshotJSON {
	successors := make([]*peerDTO, len(snap.SuccessorList))
	for i, p := range snap.SuccessorList {
		successors[i] = toPeerDTO(p)
	}
	fingers := make([]fingerDTO, len(snap.Fingers))
	for i, f := range snap.Fingers {
		fingers[i] = fingerDTO{Start: f.Start.Text(16), Node: toPeerDTO(f.Node)}
	}
	return snapshotJSON{
		Self:          toPeerDTO(snap.Self),
		Predecessor:   toPeerDTO(snap.Predecessor),
		SuccessorList: successors,
		Fingers:       fingers,
		Entries:       snap.StoreStats.Entries,
		Hits:          snap.StoreStats.Hits,
		Misses:        snap.StoreStats.Misses,
	}
}
