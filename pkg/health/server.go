package health

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/atomiclaunch/bundler/pkg/chainclient"
	"github.com/atomiclaunch/bundler/pkg/circuitbreaker"
	"github.com/atomiclaunch/bundler/pkg/gas"
	"github.com/atomiclaunch/bundler/pkg/tracker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents a health check HTTP server
type Server struct {
	port          string
	network       string
	chain         *chainclient.Client
	breaker       *circuitbreaker.CircuitBreaker
	estimator     *gas.Estimator
	tracker       *tracker.Tracker
	metricsAPIKey string
}

// NewServer creates a new health check server
func NewServer(port, network string, chain *chainclient.Client, breaker *circuitbreaker.CircuitBreaker, estimator *gas.Estimator, trk *tracker.Tracker) *Server {
	return &Server{
		port:          port,
		network:       network,
		chain:         chain,
		breaker:       breaker,
		estimator:     estimator,
		tracker:       trk,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the health check server
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.chain == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Chain client not connected"))
			return
		}
		if _, err := s.chain.BlockNumber(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Chain node unreachable: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Service status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"network": s.network,
		}

		if s.breaker != nil {
			state, failures, lastFailure := s.breaker.GetState()
			circuit := map[string]interface{}{
				"state":    state.String(),
				"failures": failures,
			}
			if !lastFailure.IsZero() {
				circuit["last_failure"] = lastFailure
			}
			status["circuit"] = circuit
		}

		if s.estimator != nil {
			history := s.estimator.History()
			gasStatus := map[string]interface{}{
				"observations": len(history),
			}
			if len(history) > 0 {
				latest := history[len(history)-1]
				gasStatus["latest_price"] = latest.Price.String()
				gasStatus["latest_at"] = latest.Timestamp
			}
			status["gas"] = gasStatus
		}

		if s.tracker != nil {
			report := s.tracker.Report()
			status["operations"] = map[string]interface{}{
				"total":          report.Metrics.TotalCount,
				"success":        report.Metrics.SuccessCount,
				"failed":         report.Metrics.FailedCount,
				"pending":        report.Metrics.PendingCount,
				"success_rate":   report.Metrics.SuccessRate,
				"total_gas_used": report.Metrics.TotalGasUsed,
				"total_fee_paid": report.Metrics.TotalFeePaid.String(),
				"avg_duration":   report.Metrics.AverageDuration.String(),
			}
		}

		if s.chain != nil {
			if blockNumber, err := s.chain.BlockNumber(r.Context()); err == nil {
				status["latest_block"] = blockNumber
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.breaker == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker configured"))
			return
		}

		s.breaker.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker reset"))
	})

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	log.Printf("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, mux); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
