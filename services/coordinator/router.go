package coordinator

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions controls the outer middleware stack.
type RouterOptions struct {
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
	Telemetry       func(http.Handler) http.Handler
	Ready           func() error
}

// Routes constructs the chi router containing all coordinator endpoints.
func (a *API) Routes(opts RouterOptions) (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 120
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Use(httprate.Limit(opts.RateLimit, opts.RateLimitWindow))

	if opts.Telemetry != nil {
		r.Use(opts.Telemetry)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(); err != nil {
				respondError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.Authenticate)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", a.handleCreateEvent)
			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", a.handleGetEvent)
				r.Get("/membership", a.handleGetMembership)
				r.Get("/participants", a.handleListParticipants)
				r.Delete("/participants/{userID}", a.handleRemoveParticipant)
				r.Post("/join", a.handleJoin)
				r.Post("/leave", a.handleLeave)
				r.Route("/requests", func(r chi.Router) {
					r.Post("/", a.handleCreateRequest)
					r.Get("/", a.handleListRequests)
					r.Post("/{requestID}/approve", a.handleApproveRequest)
					r.Post("/{requestID}/reject", a.handleRejectRequest)
					r.Delete("/{requestID}", a.handleWithdrawRequest)
				})
			})
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Post("/", a.handleCreateInvitation)
			r.Get("/", a.handleListInvitations)
			r.Post("/{invitationID}/accept", a.handleAcceptInvitation)
			r.Post("/{invitationID}/decline", a.handleDeclineInvitation)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", a.handleNotify)
			r.Get("/", a.handleListNotifications)
			r.Patch("/{notificationID}/read", a.handleMarkNotificationRead)
			r.Delete("/{notificationID}", a.handleDeleteNotification)
		})
	})

	return r, nil
}
