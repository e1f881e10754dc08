package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/backup"
	"github.com/dukerupert/questtracker/internal/config"
	"github.com/dukerupert/questtracker/internal/fcm"
	"github.com/dukerupert/questtracker/internal/geofence"
	"github.com/dukerupert/questtracker/internal/handler"
	"github.com/dukerupert/questtracker/internal/leaderboard"
	"github.com/dukerupert/questtracker/internal/middleware"
	"github.com/dukerupert/questtracker/internal/notify"
	"github.com/dukerupert/questtracker/internal/objectstore"
	"github.com/dukerupert/questtracker/internal/push"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/quiz"
	"github.com/dukerupert/questtracker/internal/reward"
	"github.com/dukerupert/questtracker/internal/store"
	ws "github.com/dukerupert/questtracker/internal/websocket"
)

// Auth endpoints get a much smaller budget than the rest of the API.
const (
	authRateLimit = 0.2
	authRateBurst = 5
)

// Deps are the outside services main builds. Any of them may be nil.
type Deps struct {
	Mobile *fcm.Sender
	Blobs  *objectstore.Store
	Mailer handler.Mailer
}

type Server struct {
	db       *sql.DB
	cfg      *config.Config
	hub      *ws.Hub
	registry *prometheus.Registry
	metrics  *middleware.Metrics
	authn    *middleware.Authenticator

	apiLimiter  *middleware.RateLimiter
	authLimiter *middleware.RateLimiter

	quests    *quest.Service
	notifier  *notify.Service
	scheduler *push.Scheduler
	backups   *backup.Manager

	accountH      *handler.AccountHandler
	familyH       *handler.FamilyHandler
	questH        *handler.QuestHandler
	rewardH       *handler.RewardHandler
	quizH         *handler.QuizHandler
	locationH     *handler.LocationHandler
	leaderboardH  *handler.LeaderboardHandler
	notificationH *handler.NotificationHandler
	helpH         *handler.HelpHandler

	logger *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	quest.RegisterMetrics(registry)

	// Interfaces stay nil when a transport is off.
	var web notify.WebPusher
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if pushSvc != nil {
		web = pushSvc
	}
	var mobile notify.MobilePusher
	if deps.Mobile != nil {
		mobile = deps.Mobile
	}
	var (
		blobs  backup.Blobs
		proofs quest.ProofStore
	)
	if deps.Blobs != nil {
		blobs = deps.Blobs
		proofs = deps.Blobs
	}

	notifier := notify.NewService(db, hub, web, mobile, logger)
	quests := quest.NewService(db, proofs, notifier, logger.With("component", "quest"))
	rewards := reward.NewService(db, notifier, logger.With("component", "reward"))
	quizzes := quiz.NewService(db, notifier, logger.With("component", "quiz"))
	geo := geofence.NewService(db, hub, notifier, logger.With("component", "geofence"))
	boards := leaderboard.NewService(db, logger.With("component", "leaderboard"))

	scheduler := push.NewScheduler(db, push.SchedulerDeps{
		Quests:   quests,
		Quizzes:  quizzes,
		Location: geo,
		Reminder: notifier,
	}, logger)
	backups := backup.NewManager(db, blobs, backup.Config{
		Passphrase:    cfg.BackupPassphrase,
		Hour:          cfg.BackupHour,
		RetentionDays: cfg.BackupRetentionDays,
	}, logger.With("component", "backup"))

	families := store.NewFamilyStore(db)
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db).WithTTL(cfg.SessionTTL)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	return &Server{
		db:       db,
		cfg:      cfg,
		hub:      hub,
		registry: registry,
		metrics:  middleware.NewMetrics(registry),
		authn:    middleware.NewAuthenticator(sessions, users, tokens, logger.With("component", "auth")),

		apiLimiter:  middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, logger),
		authLimiter: middleware.NewRateLimiter(authRateLimit, authRateBurst, logger),

		quests:    quests,
		notifier:  notifier,
		scheduler: scheduler,
		backups:   backups,

		accountH:      handler.NewAccountHandler(db, sessions, tokens, deps.Mailer, logger.With("component", "account")),
		familyH:       handler.NewFamilyHandler(families, users, sessions, quests, hub, logger.With("component", "family")),
		questH:        handler.NewQuestHandler(quests, users, deps.Blobs, logger.With("component", "quest_handler")),
		rewardH:       handler.NewRewardHandler(rewards, users, logger.With("component", "reward_handler")),
		quizH:         handler.NewQuizHandler(quizzes, users, logger.With("component", "quiz_handler")),
		locationH:     handler.NewLocationHandler(geo, logger.With("component", "location_handler")),
		leaderboardH:  handler.NewLeaderboardHandler(boards, logger.With("component", "leaderboard_handler")),
		notificationH: handler.NewNotificationHandler(notifier, pushSvc, logger.With("component", "notification_handler")),
		helpH:         handler.NewHelpHandler(store.NewHelpRequestStore(db), users, deps.Mailer, cfg.SupportEmail, logger.With("component", "help")),

		logger: logger,
	}
}

// Quests returns the quest service for the process command.
func (s *Server) Quests() *quest.Service {
	return s.quests
}

// Notifier returns the notification service so shutdown can wait for
// in-flight deliveries.
func (s *Server) Notifier() *notify.Service {
	return s.notifier
}

// Scheduler returns the background job scheduler.
func (s *Server) Scheduler() *push.Scheduler {
	return s.scheduler
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backups
}

// RateLimiters returns the limiters whose visitor maps need cleanup.
func (s *Server) RateLimiters() []*middleware.RateLimiter {
	return []*middleware.RateLimiter{s.apiLimiter, s.authLimiter}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}))

	// Public auth routes
	mux.Handle("POST /api/auth/code", s.public(s.accountH.RequestCode))
	mux.Handle("POST /api/auth/verify", s.public(s.accountH.Verify))
	mux.Handle("POST /api/auth/child", s.public(s.accountH.ChildLogin))

	s.registerProtectedRoutes(mux)

	mux.Handle("GET /ws", s.member(ws.HandleWebSocket(s.hub, s.cfg.CORSOrigins, s.logger.With("component", "websocket"))))

	var h http.Handler = s.metrics.Monitor(mux)
	if len(s.cfg.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.AllowCredentials(),
		)(h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok", "backup": s.backups.Status()}
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func byIP(r *http.Request) string {
	return middleware.RealIP(r)
}

func (s *Server) public(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.authLimiter, byIP)(h)
}

func (s *Server) authed(h http.Handler) http.Handler {
	return middleware.RateLimit(s.apiLimiter, byIP)(s.authn.RequireAuth(h))
}

// member allows any signed-in family member.
func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.authed(h)
}

func (s *Server) parent(h http.HandlerFunc) http.Handler {
	return s.authed(middleware.RequireParent(h))
}

func (s *Server) child(h http.HandlerFunc) http.Handler {
	return s.authed(middleware.RequireChild(h))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session
	mux.Handle("POST /api/auth/token", s.member(s.accountH.Refresh))
	mux.Handle("POST /api/auth/logout", s.member(s.accountH.Logout))
	mux.Handle("GET /api/me", s.member(s.accountH.Me))

	// Family and children
	mux.Handle("GET /api/family", s.member(s.familyH.Get))
	mux.Handle("PUT /api/family", s.parent(s.familyH.Update))
	mux.Handle("GET /api/family/progress", s.parent(s.familyH.Progress))
	mux.Handle("GET /api/children", s.member(s.familyH.Children))
	mux.Handle("POST /api/children", s.parent(s.familyH.CreateChild))
	mux.Handle("PUT /api/children/{id}", s.parent(s.familyH.UpdateChild))
	mux.Handle("PUT /api/children/{id}/pin", s.parent(s.familyH.SetPIN))
	mux.Handle("DELETE /api/children/{id}", s.parent(s.familyH.DeleteChild))

	// Task templates and review
	mux.Handle("GET /api/tasks", s.parent(s.questH.ListTasks))
	mux.Handle("POST /api/tasks", s.parent(s.questH.CreateTask))
	mux.Handle("PUT /api/tasks/{id}", s.parent(s.questH.UpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.parent(s.questH.DeleteTask))
	mux.Handle("POST /api/tasks/{id}/children/{child}/approve", s.parent(s.questH.Approve))
	mux.Handle("POST /api/tasks/{id}/children/{child}/decline", s.parent(s.questH.Decline))
	mux.Handle("GET /api/tasks/{id}/children/{child}/proof", s.parent(s.questH.Proof))
	mux.Handle("GET /api/approvals", s.parent(s.questH.Pending))

	// Quests as a child sees them
	mux.Handle("GET /api/quests", s.member(s.questH.Board))
	mux.Handle("POST /api/quests/process", s.member(s.questH.Process))
	mux.Handle("POST /api/quests/{id}/submit", s.child(s.questH.Submit))
	mux.Handle("POST /api/quests/{id}/cancel", s.child(s.questH.Cancel))
	mux.Handle("POST /api/quests/{id}/claim", s.child(s.questH.Claim))
	mux.Handle("GET /api/history", s.member(s.questH.History))

	// Quest requests
	mux.Handle("GET /api/quest-requests", s.member(s.questH.QuestRequests))
	mux.Handle("POST /api/quest-requests", s.child(s.questH.RequestQuest))
	mux.Handle("POST /api/quest-requests/{id}/approve", s.parent(s.questH.ApproveRequest))
	mux.Handle("POST /api/quest-requests/{id}/decline", s.parent(s.questH.DeclineRequest))

	// Rewards and redemptions
	mux.Handle("GET /api/rewards", s.member(s.rewardH.List))
	mux.Handle("POST /api/rewards", s.parent(s.rewardH.Create))
	mux.Handle("GET /api/rewards/{id}", s.member(s.rewardH.Get))
	mux.Handle("PUT /api/rewards/{id}", s.parent(s.rewardH.Update))
	mux.Handle("DELETE /api/rewards/{id}", s.parent(s.rewardH.Delete))
	mux.Handle("POST /api/rewards/{id}/redeem", s.child(s.rewardH.Redeem))
	mux.Handle("GET /api/redemptions", s.member(s.rewardH.Redemptions))
	mux.Handle("POST /api/redemptions/{id}/approve", s.parent(s.rewardH.ApproveRedemption))
	mux.Handle("POST /api/redemptions/{id}/decline", s.parent(s.rewardH.DeclineRedemption))

	// Wishlist
	mux.Handle("GET /api/wishlist", s.member(s.rewardH.Wishlist))
	mux.Handle("POST /api/wishlist", s.child(s.rewardH.AddWish))
	mux.Handle("DELETE /api/wishlist/{id}", s.child(s.rewardH.RemoveWish))
	mux.Handle("POST /api/wishlist/{id}/approve", s.parent(s.rewardH.ApproveWish))
	mux.Handle("POST /api/wishlist/{id}/decline", s.parent(s.rewardH.DeclineWish))

	// Quizzes
	mux.Handle("GET /api/quizzes", s.member(s.quizH.List))
	mux.Handle("POST /api/quizzes", s.parent(s.quizH.Create))
	mux.Handle("GET /api/quizzes/{id}", s.member(s.quizH.Get))
	mux.Handle("DELETE /api/quizzes/{id}", s.parent(s.quizH.Delete))
	mux.Handle("POST /api/quizzes/{id}/submit", s.child(s.quizH.Submit))

	// Location and geofences
	mux.Handle("GET /api/geofences", s.member(s.locationH.Geofences))
	mux.Handle("POST /api/geofences", s.parent(s.locationH.CreateGeofence))
	mux.Handle("PUT /api/geofences/{id}", s.parent(s.locationH.UpdateGeofence))
	mux.Handle("DELETE /api/geofences/{id}", s.parent(s.locationH.DeleteGeofence))
	mux.Handle("POST /api/location", s.child(s.locationH.Report))
	mux.Handle("GET /api/locations", s.parent(s.locationH.Locations))
	mux.Handle("GET /api/children/{id}/location", s.parent(s.locationH.ChildLocation))
	mux.Handle("POST /api/children/{id}/location/request", s.parent(s.locationH.RequestUpdate))
	mux.Handle("GET /api/children/{id}/location/history", s.parent(s.locationH.History))

	// Leaderboards
	mux.Handle("GET /api/leaderboard", s.member(s.leaderboardH.Family))
	mux.Handle("GET /api/leaderboard/global", s.member(s.leaderboardH.Global))
	mux.Handle("GET /api/leaderboard/prizes", s.member(s.leaderboardH.Prizes))
	mux.Handle("PUT /api/leaderboard/prizes/{period}", s.parent(s.leaderboardH.SetPrize))

	// Notifications
	mux.Handle("GET /api/notifications", s.member(s.notificationH.List))
	mux.Handle("DELETE /api/notifications", s.member(s.notificationH.Clear))
	mux.Handle("GET /api/notifications/unread-count", s.member(s.notificationH.UnreadCount))
	mux.Handle("POST /api/notifications/read-all", s.member(s.notificationH.MarkAllRead))
	mux.Handle("POST /api/notifications/test", s.member(s.notificationH.Test))
	mux.Handle("GET /api/notifications/preferences", s.member(s.notificationH.Preferences))
	mux.Handle("PUT /api/notifications/preferences", s.member(s.notificationH.UpdatePreferences))
	mux.Handle("POST /api/notifications/{id}/read", s.member(s.notificationH.MarkRead))
	mux.Handle("POST /api/notifications/{id}/clicked", s.member(s.notificationH.MarkClicked))
	mux.Handle("DELETE /api/notifications/{id}", s.member(s.notificationH.Delete))

	// Push targets
	mux.Handle("GET /api/push/vapid-key", s.member(s.notificationH.VAPIDKey))
	mux.Handle("POST /api/push/subscribe", s.member(s.notificationH.Subscribe))
	mux.Handle("GET /api/push/subscriptions", s.member(s.notificationH.Subscriptions))
	mux.Handle("DELETE /api/push/subscriptions/{id}", s.member(s.notificationH.Unsubscribe))
	mux.Handle("POST /api/devices", s.member(s.notificationH.RegisterDevice))
	mux.Handle("DELETE /api/devices", s.member(s.notificationH.UnregisterDevice))

	// Help center
	mux.Handle("GET /api/help", s.member(s.helpH.List))
	mux.Handle("POST /api/help", s.member(s.helpH.Create))
}
