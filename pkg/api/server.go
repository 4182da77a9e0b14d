package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/order"
	"github.com/openlend/debtkernel/pkg/storage"
)

// Server is the relayer's REST and WebSocket surface: debtors and
// creditors park signed debt orders here for counterparties to discover.
// The relayer never holds keys; it verifies signatures, it does not make
// them.
type Server struct {
	store  *storage.OrderStore
	router *mux.Router
	hub    *Hub // WebSocket hub
}

// NewServer creates a new relayer API server
func NewServer(store *storage.OrderStore) *Server {
	s := &Server{
		store:  store,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order book
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{hash}", s.handleDeleteOrder).Methods("DELETE")

	// Per-debtor listing
	api.HandleFunc("/debtors/{address}/orders", s.handleListByDebtor).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	log.Printf("[api] relayer starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// REST Handlers
// ==============================

// handleSubmitOrder accepts a debt order in interchange form. The payload
// must already carry a valid debtor signature: a relayer that accepted
// unsigned orders would be advertising commitments nobody made.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var wire order.InterchangeOrder
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON order", err.Error())
		return
	}

	record, err := order.FromInterchange(&wire, nil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	if !record.IsSignedBy(order.RoleDebtor) {
		respondError(w, http.StatusUnprocessableEntity, "missing debtor signature",
			"the debtor must sign the commitment hash before the order can be relayed")
		return
	}

	hash, err := s.store.SaveOrder(record)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store order", err.Error())
		return
	}

	log.Printf("[api] order accepted: hash=%s debtor=%s", hash.Hex(), record.Debtor().Hex())

	s.broadcastOrderEvent("submitted", hash, record.Debtor())
	respondJSON(w, SubmitOrderResponse{Status: "accepted", CommitmentHash: hash.Hex()})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListOrders()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders", err.Error())
		return
	}
	respondJSON(w, summarize(records))
}

func (s *Server) handleListByDebtor(w http.ResponseWriter, r *http.Request) {
	// Strict parse: a mis-checksummed address is a client error, not an
	// empty listing for a party that doesn't exist.
	address, err := crypto.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	records, err := s.store.ListByDebtor(address)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders", err.Error())
		return
	}
	respondJSON(w, summarize(records))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	record, _, ok := s.lookupOrder(w, r)
	if !ok {
		return
	}

	wire, err := record.Interchange()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to serialize order", err.Error())
		return
	}
	respondJSON(w, wire)
}

// handleDeleteOrder removes an order from the relayer. Deletion must be
// authorized by the debtor: the X-Signature header carries a signature
// over the commitment hash that has to recover to the debtor's address.
func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	record, hash, ok := s.lookupOrder(w, r)
	if !ok {
		return
	}

	sigHex := r.Header.Get("X-Signature")
	if sigHex == "" {
		respondError(w, http.StatusUnauthorized, "missing signature", "X-Signature header required")
		return
	}
	if !crypto.VerifySignature(record.Debtor(), hash.Bytes(), common.FromHex(sigHex)) {
		respondError(w, http.StatusForbidden, "not the debtor",
			"deletion signature does not recover to the order's debtor")
		return
	}

	if err := s.store.DeleteOrder(hash); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete order", err.Error())
		return
	}

	log.Printf("[api] order deleted: hash=%s", hash.Hex())

	s.broadcastOrderEvent("deleted", hash, record.Debtor())
	respondJSON(w, map[string]string{"status": "deleted", "commitmentHash": hash.Hex()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// lookupOrder resolves the {hash} path variable to a stored record,
// writing the error response itself when the lookup fails.
func (s *Server) lookupOrder(w http.ResponseWriter, r *http.Request) (*order.Record, common.Hash, bool) {
	hashStr := mux.Vars(r)["hash"]
	if len(hashStr) != 66 || hashStr[:2] != "0x" {
		respondError(w, http.StatusBadRequest, "invalid commitment hash", "expected 0x-prefixed 32-byte hex")
		return nil, common.Hash{}, false
	}
	hash := common.HexToHash(hashStr)

	record, err := s.store.GetOrder(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load order", err.Error())
		return nil, common.Hash{}, false
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return nil, common.Hash{}, false
	}
	return record, hash, true
}

func summarize(records []*order.Record) []OrderSummary {
	out := make([]OrderSummary, 0, len(records))
	for _, rec := range records {
		terms := rec.Terms()
		hash, err := rec.CommitmentHash()
		if err != nil {
			continue
		}
		summary := OrderSummary{
			CommitmentHash:  hash.Hex(),
			Debtor:          rec.Debtor().Hex(),
			PrincipalAmount: terms.Principal.Raw().String(),
			PrincipalToken:  terms.Principal.Symbol(),
			Variant:         rec.Variant().String(),
			Status:          rec.LocalStatus().String(),
			ExpiresAt:       terms.ExpiresAt.Unix(),
		}
		if rec.Creditor() != (common.Address{}) {
			summary.Creditor = rec.Creditor().Hex()
		}
		out = append(out, summary)
	}
	return out
}

// broadcastOrderEvent pushes an order event out through the hub; channel
// fan-out is the hub's business.
func (s *Server) broadcastOrderEvent(event string, hash common.Hash, debtor common.Address) {
	s.hub.Publish(OrderUpdate{
		Type:           "order",
		Event:          event,
		CommitmentHash: hash.Hex(),
		Debtor:         debtor.Hex(),
		Timestamp:      time.Now().UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
