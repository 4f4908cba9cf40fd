package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/staffLoan/pkg/auth"
	"github.com/mcclellann/staffLoan/pkg/batch"
	"github.com/mcclellann/staffLoan/pkg/config"
	"github.com/mcclellann/staffLoan/pkg/ledger"
	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/mcclellann/staffLoan/pkg/metrics"
	"github.com/mcclellann/staffLoan/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionCookie   = "session"
	requestIDHeader = "X-Request-ID"
	maxUploadBytes  = 10 << 20
)

// Server holds the services behind the portal's HTTP surface.
type Server struct {
	storage   store.Storage
	ledger    *ledger.Ledger
	accounts  *auth.Accounts
	processor *batch.Processor
	resolver  *auth.Resolver
	sessions  *auth.Sessions
	validate  *validator.Validate
	views     *views
	cfg       *config.Config
}

func NewServer(s store.Storage, cfg *config.Config) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Server{
		storage:   s,
		ledger:    ledger.NewLedger(s),
		accounts:  auth.NewAccounts(s),
		processor: batch.NewProcessor(s),
		resolver:  auth.NewResolver(s),
		sessions:  auth.NewSessions(cfg.Session.Secret, cfg.Session.TTL),
		validate:  validator.New(),
		views:     v,
		cfg:       cfg,
	}, nil
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, noCacheMiddleware, accessLogMiddleware, s.principalMiddleware, flashMiddleware)

	router.HandleFunc("/health", healthHandler).Methods("GET")
	if s.cfg.Metrics.Enabled {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
	router.HandleFunc("/", s.indexHandler).Methods("GET")

	router.HandleFunc("/admin/login", s.adminLoginHandler).Methods("GET", "POST")
	router.HandleFunc("/staff/login", s.staffLoginHandler).Methods("GET", "POST")
	router.HandleFunc("/staff/register", s.staffRegisterHandler).Methods("GET", "POST")

	admin := router.NewRoute().Subrouter()
	admin.Use(s.adminOnly)
	admin.HandleFunc("/admin/logout", s.logoutHandler).Methods("GET")
	admin.HandleFunc("/admin/dashboard", s.adminDashboardHandler).Methods("GET")
	admin.HandleFunc("/admin/manage-staff", s.manageStaffHandler).Methods("GET")
	admin.HandleFunc("/admin/approve/{id:[0-9]+}", s.approveStaffHandler).Methods("GET")
	admin.HandleFunc("/admin/reject/{id:[0-9]+}", s.rejectStaffHandler).Methods("GET")
	admin.HandleFunc("/admin/upload-payments", s.uploadPaymentsHandler).Methods("GET", "POST")
	admin.HandleFunc("/admin/upload-loans", s.uploadLoansHandler).Methods("GET", "POST")
	admin.HandleFunc("/admin/payments", s.paymentsHandler).Methods("GET")
	admin.HandleFunc("/admin/pending-loans", s.pendingLoansHandler).Methods("GET")
	admin.HandleFunc("/admin/loans", s.loansHandler).Methods("GET")
	admin.HandleFunc("/admin/loan/approve/{id:[0-9]+}", s.approveLoanHandler).Methods("GET")
	admin.HandleFunc("/admin/loan/reject/{id:[0-9]+}", s.rejectLoanHandler).Methods("GET")
	admin.HandleFunc("/admin/loan/{id:[0-9]+}/repay", s.repayLoanHandler).Methods("POST")
	admin.HandleFunc("/admin/report-payments", s.reportPaymentsHandler).Methods("GET")
	admin.HandleFunc("/admin/report-loans", s.reportLoansHandler).Methods("GET")

	staff := router.NewRoute().Subrouter()
	staff.Use(s.staffOnly)
	staff.HandleFunc("/staff/logout", s.logoutHandler).Methods("GET")
	staff.HandleFunc("/staff/dashboard", s.staffDashboardHandler).Methods("GET")
	staff.HandleFunc("/staff/request-loan", s.requestLoanHandler).Methods("GET", "POST")

	return router
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// noCacheMiddleware keeps browsers from showing protected pages from
// history after logout.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		logger.Info(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type principalKey struct{}

// principalMiddleware resolves the session cookie to a principal. A missing,
// expired or stale session yields Anonymous.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p auth.Principal = auth.Anonymous{}
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			key, err := s.sessions.Parse(c.Value)
			if err == nil {
				p, err = s.resolver.Resolve(r.Context(), key)
				if err != nil {
					logger.Error(r.Context(), "failed to resolve session", slog.Any("error", err))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}
			if _, anon := p.(auth.Anonymous); anon {
				clearSession(w)
			}
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(r *http.Request) auth.Principal {
	if p, ok := r.Context().Value(principalKey{}).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous{}
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return s.guard(auth.RequireAdmin, "Access denied: Staff cannot view admin pages.", next)
}

func (s *Server) staffOnly(next http.Handler) http.Handler {
	return s.guard(auth.RequireStaff, "Access denied: Admin cannot view staff pages.", next)
}

// guard sends principals of the other role back to their own dashboard and
// anonymous requests to the staff login page.
func (s *Server) guard(check func(auth.Principal) error, denied string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r)
		switch err := check(p); {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, auth.ErrAccessDenied):
			logger.Warn(r.Context(), "access denied", slog.String("principal", p.Key()), slog.String("path", r.URL.Path))
			addFlash(r, flashDanger, denied)
			redirect(w, r, dashboardFor(p))
		default:
			addFlash(r, flashWarning, "Please log in to access this page.")
			redirect(w, r, "/staff/login")
		}
	})
}

func dashboardFor(p auth.Principal) string {
	switch p.(type) {
	case auth.AdminPrincipal:
		return "/admin/dashboard"
	case auth.StaffPrincipal:
		return "/staff/dashboard"
	default:
		return "/"
	}
}

func (s *Server) startSession(w http.ResponseWriter, p auth.Principal) error {
	token, expires, err := s.sessions.Issue(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// idParam parses the {id} route variable. Callers answer 404 on error.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// serverError logs err and answers 500 without exposing it.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// notFoundOr answers 404 for store.ErrNotFound and 500 for anything else.
func notFoundOr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	serverError(w, r, err)
}
