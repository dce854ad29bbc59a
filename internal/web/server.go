/*

This file contains the HTTP API for the credit engine. The server keeps the
latest report and signed proposal per wallet in memory, mirroring the
session flow of the lending frontend: analyze first, then quote, package,
and publish against the cached report.

*/

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creditlens/wcs/internal/engine"
	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/proposal"
	"github.com/creditlens/wcs/internal/state"
	"github.com/creditlens/wcs/internal/types"
	"github.com/gorilla/mux"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for wallet analysis and loan flows.
type WebServer struct {
	router *mux.Router
	port   string
	engine *engine.Engine

	mu        sync.RWMutex
	reports   map[string]types.CreditReport
	proposals map[string]types.SignedProposal
}

// NewWebServer creates a new web server instance around a credit engine.
func NewWebServer(port string, eng *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		engine:    eng,
		reports:   make(map[string]types.CreditReport),
		proposals: make(map[string]types.SignedProposal),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/analyze", ws.handleAnalyze).Methods("POST")
	api.HandleFunc("/report/{address}", ws.handleGetReport).Methods("GET")
	api.HandleFunc("/report/{address}/publish", ws.handlePublishReport).Methods("POST")
	api.HandleFunc("/loan/quote", ws.handleLoanQuote).Methods("POST")
	api.HandleFunc("/proposal/package", ws.handlePackageProposal).Methods("POST")
	api.HandleFunc("/proposal/publish", ws.handlePublishProposal).Methods("POST")
	api.HandleFunc("/scoring-parameters", ws.handleGetScoringParameters).Methods("GET")
	api.HandleFunc("/history/reports", ws.handleRecentReports).Methods("GET")
	api.HandleFunc("/history/proposals", ws.handleRecentProposals).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

type analyzeRequest struct {
	Address string `json:"address"`
}

type loanQuoteRequest struct {
	Address string `json:"address"`
	types.LoanRequest
}

type packageRequest struct {
	Address  string `json:"address"`
	LoanPool string `json:"loan_pool"`
	types.LoanRequest
}

type publishProposalRequest struct {
	Address   string `json:"address"`
	Recipient string `json:"recipient"`
}

// handleAnalyze runs a full analysis and caches the resulting report.
func (ws *WebServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := ws.engine.Analyze(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		webLogger.Error().Err(err).Str("wallet", req.Address).Msg("Analysis failed")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Wallet analysis failed: required data unavailable")
		return
	}

	ws.mu.Lock()
	ws.reports[report.Address] = report
	ws.mu.Unlock()

	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handleGetReport returns the cached report for a wallet.
func (ws *WebServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := ws.cachedReport(mux.Vars(r)["address"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No report for this wallet; run an analysis first")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handleLoanQuote derives a loan quote against the cached report.
func (ws *WebServer) handleLoanQuote(w http.ResponseWriter, r *http.Request) {
	var req loanQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, ok := ws.cachedReport(req.Address)
	if !ok {
		ws.writeErrorResponse(w, http.StatusConflict, "No report for this wallet; run an analysis first")
		return
	}

	quote, err := ws.engine.QuoteLoan(report, req.LoanRequest)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, quote)
}

// handlePackageProposal builds and signs a proposal from the cached report
// plus the submitted loan request, and caches the package for publication.
func (ws *WebServer) handlePackageProposal(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, ok := ws.cachedReport(req.Address)
	if !ok {
		ws.writeErrorResponse(w, http.StatusConflict, "No report for this wallet; run an analysis first")
		return
	}

	quote, err := ws.engine.QuoteLoan(report, req.LoanRequest)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if quote.Preview == nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Loan request is not specific enough to propose; provide amount and term")
		return
	}

	pkg, err := ws.engine.PackageProposal(r.Context(), report, *quote.Preview, req.LoanPool)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrSignerNotConfigured):
			ws.writeErrorResponse(w, http.StatusNotImplemented, "Proposal signing is not configured on this server")
		case errors.Is(err, engine.ErrInvalidRequest):
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		default:
			webLogger.Error().Err(err).Str("wallet", report.Address).Msg("Proposal packaging failed")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Proposal signing failed")
		}
		return
	}

	ws.mu.Lock()
	ws.proposals[report.Address] = pkg
	ws.mu.Unlock()

	hexData, err := proposal.HexData(pkg)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to hex-encode signed proposal")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to encode signed proposal")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"proposal": pkg,
		"hex_data": hexData,
	})
}

// handlePublishProposal broadcasts the cached signed proposal for a wallet.
func (ws *WebServer) handlePublishProposal(w http.ResponseWriter, r *http.Request) {
	var req publishProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ws.mu.RLock()
	pkg, ok := ws.proposals[strings.ToLower(req.Address)]
	ws.mu.RUnlock()
	if !ok {
		ws.writeErrorResponse(w, http.StatusConflict, "No signed proposal for this wallet; package one first")
		return
	}

	txHash, err := ws.engine.PublishProposal(r.Context(), pkg, req.Recipient)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrPublisherNotConfigured):
			ws.writeErrorResponse(w, http.StatusNotImplemented, "On-chain publication is not configured on this server")
		case errors.Is(err, engine.ErrInvalidRequest):
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		default:
			webLogger.Error().Err(err).Msg("Proposal publication failed")
			ws.writeErrorResponse(w, http.StatusBadGateway, "Broadcast failed; the signed proposal remains valid")
		}
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"tx_hash": txHash})
}

// handlePublishReport broadcasts the cached report to the wallet itself.
func (ws *WebServer) handlePublishReport(w http.ResponseWriter, r *http.Request) {
	report, ok := ws.cachedReport(mux.Vars(r)["address"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusConflict, "No report for this wallet; run an analysis first")
		return
	}

	txHash, err := ws.engine.PublishReport(r.Context(), report)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrPublisherNotConfigured):
			ws.writeErrorResponse(w, http.StatusNotImplemented, "On-chain publication is not configured on this server")
		default:
			webLogger.Error().Err(err).Msg("Report publication failed")
			ws.writeErrorResponse(w, http.StatusBadGateway, "Broadcast failed; the report remains valid")
		}
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"tx_hash": txHash})
}

// handleGetScoringParameters returns the active parameter set.
func (ws *WebServer) handleGetScoringParameters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"parameters": ws.engine.Params(),
		"timestamp":  time.Now().UTC(),
	})
}

// handleRecentReports returns persisted report snapshots from the audit store.
func (ws *WebServer) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	if !state.Ready() {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Audit store is not configured on this server")
		return
	}

	rows, err := state.GetRecentReports(strings.ToLower(r.URL.Query().Get("address")), ws.queryLimit(r))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent reports")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve report history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"reports": rows,
		"count":   len(rows),
	})
}

// handleRecentProposals returns persisted proposal records from the audit store.
func (ws *WebServer) handleRecentProposals(w http.ResponseWriter, r *http.Request) {
	if !state.Ready() {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Audit store is not configured on this server")
		return
	}

	rows, err := state.GetRecentProposals(strings.ToLower(r.URL.Query().Get("address")), ws.queryLimit(r))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent proposals")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve proposal history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"proposals": rows,
		"count":     len(rows),
	})
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	ws.mu.RLock()
	cachedReports := len(ws.reports)
	cachedProposals := len(ws.proposals)
	ws.mu.RUnlock()

	response := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "wcs-wallet-credit-service",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"audit_store_enabled": state.Ready(),
			"cached_reports":      cachedReports,
			"cached_proposals":    cachedProposals,
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) cachedReport(address string) (types.CreditReport, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	report, ok := ws.reports[strings.ToLower(address)]
	return report, ok
}

func (ws *WebServer) queryLimit(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with its status and duration.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
