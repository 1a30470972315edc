package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jamilsaadou/naneye-sub000/internal/handlers"
)

type Middleware func(http.Handler) http.Handler

type Server struct {
	httpServer *http.Server
}

// Routes assembles the HTTP surface: staff endpoints behind the personal
// access token middleware, collector endpoints behind the JWT gateway.
func Routes(h *handlers.Handlers, staff, collector Middleware) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)

	mux.Handle("/api/payments/manual", staff(http.HandlerFunc(h.ManualPayment)))
	mux.Handle("/api/payments/proof", staff(http.HandlerFunc(h.PaymentProofLink)))

	mux.Handle("/api/reductions", staff(http.HandlerFunc(h.RequestReduction)))
	mux.Handle("/api/reductions/approve", staff(http.HandlerFunc(h.ApproveReduction)))
	mux.Handle("/api/reductions/reject", staff(http.HandlerFunc(h.RejectReduction)))
	mux.Handle("/api/reductions/pending", staff(http.HandlerFunc(h.PendingReductions)))

	mux.Handle("/api/collector/payments", collector(http.HandlerFunc(h.CollectorPayment)))
	mux.Handle("/api/collector/notices", collector(http.HandlerFunc(h.CollectorNotice)))
	mux.Handle("/api/collector/logs", staff(http.HandlerFunc(h.CollectorCallLogs)))

	return mux
}

func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
