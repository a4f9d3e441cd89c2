// Package httpapi serves the doorkeeper HTTP API: the device routes polled by
// door controllers, the JWT-protected staff routes and the ops endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

type Dependencies struct {
	Logger log.FieldLogger
	Addr   string

	DoorService     *service.DoorService
	LockUserService *service.LockUserService
	ScanService     *service.ScanService
	AccessService   *service.AccessService
	StaffService    *service.StaffService

	// Live serves the websocket event feed. Nil disables /v1/live.
	Live    http.Handler
	Metrics *metrics.Metrics
	// Ping reports storage health for /healthz. Nil always reports ok.
	Ping func(ctx context.Context) error

	JWTSecret string
	TokenTTL  time.Duration

	// DeviceToken, when set, must be sent by controllers in X-Device-Token.
	DeviceToken     string
	DeviceRateLimit int // requests per IP per minute, 0 disables
	CORSOrigins     []string
	RequestTimeout  time.Duration

	Now func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     log.FieldLogger
	tokenAuth  *jwtauth.JWTAuth
	tokenTTL   time.Duration
	now        func() time.Time

	doors  *service.DoorService
	users  *service.LockUserService
	scans  *service.ScanService
	access *service.AccessService
	staff  *service.StaffService
	ping   func(ctx context.Context) error
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 12 * time.Hour
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	s := &Server{
		logger:    d.Logger,
		tokenAuth: jwtauth.New("HS256", []byte(d.JWTSecret), nil),
		tokenTTL:  d.TokenTTL,
		now:       d.Now,
		doors:     d.DoorService,
		users:     d.LockUserService,
		scans:     d.ScanService,
		access:    d.AccessService,
		staff:     d.StaffService,
		ping:      d.Ping,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(d.CORSOrigins)))

	limit := func(r chi.Router) {
		if d.DeviceRateLimit > 0 {
			r.Use(httprate.LimitByIP(d.DeviceRateLimit, time.Minute))
		}
	}

	// Door controllers.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))
		limit(r)
		r.Use(requireDeviceToken(d.DeviceToken))

		r.Get("/v1/doors/{doorID}/check/{rfid}", s.handleCheckPath)
		r.Post("/v1/check", s.handleCheck)
		r.Get("/v1/doors/{doorID}/allowed", s.handleAllowed)

		// Paths used by the first generation of controllers.
		r.Get("/checkdoor/{doorID}/checkrfid/{rfid}", s.handleLegacyCheck)
		r.Get("/checkdoor/{doorID}/checkrfid/{rfid}/", s.handleLegacyCheck)
		r.Get("/door/{doorID}/getallowed", s.handleLegacyAllowed)
		r.Get("/door/{doorID}/getallowed/", s.handleLegacyAllowed)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))
		limit(r)
		r.Post("/v1/auth/login", s.handleLogin)
	})

	// Staff.
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verify(s.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, tokenFromQuery))
		r.Use(jwtauth.Authenticator)
		r.Use(s.loadActor)

		if d.Live != nil {
			// No timeout: the socket outlives the upgrade request.
			r.Get("/v1/live", d.Live.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.RequestTimeout))

			r.Get("/v1/auth/me", s.handleMe)

			r.Get("/v1/doors", s.handleListDoors)
			r.Post("/v1/doors", s.handleCreateDoor)
			r.Get("/v1/doors/{doorID}", s.handleGetDoor)
			r.Put("/v1/doors/{doorID}", s.handleUpdateDoor)

			r.Get("/v1/lockusers", s.handleListLockUsers)
			r.Post("/v1/lockusers", s.handleCreateLockUser)
			r.Get("/v1/lockusers/{userID}", s.handleGetLockUser)
			r.Put("/v1/lockusers/{userID}", s.handleSaveLockUser)
			r.Post("/v1/lockusers/{userID}/scans", s.handleStartScan)
			r.Get("/v1/scans/{scanID}", s.handleScanStatus)

			r.Get("/v1/access_times", s.handleListAccess)
			r.Get("/v1/chart/visits", s.handleVisitChart)

			r.Post("/v1/staff", s.handleCreateStaff)
		})
	})

	r.Get("/healthz", s.handleHealth)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
