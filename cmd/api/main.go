package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"classroom/internal/auth"
	"classroom/internal/data"
	"classroom/internal/db"
	"classroom/internal/middleware"
	"classroom/internal/notify"
	"classroom/internal/ws"

	"github.com/joho/godotenv"
)

func main() {
	// Best-effort .env loading for local development; real deployments set
	// the environment directly.
	_ = godotenv.Load()

	// Read configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	// Token validity window; the original issued one-hour sessions.
	tokenTTL := time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid TOKEN_TTL: %v", err)
		}
		tokenTTL = d
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	classroomsStore := data.NewClassroomsStore(dbClient.ClassroomsCollection())
	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection(), dbClient.MessagesCollection())
	lessonsStore := data.NewLessonsStore(dbClient.LessonsCollection(), dbClient.LessonStatusCollection())

	jwtMgr := auth.NewJWTManager(jwtSecret, tokenTTL)

	// RATE_LIMIT_RPM controls requests per minute for the access-code
	// endpoints (small burst to allow a couple of quick retries).
	rateRPM := 10
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}
	limiterStore := middleware.NewLimiterStore(rateRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	// Notification sinks fall back to console logging when credentials are
	// absent so the API stays runnable locally.
	var sms smsSender = notify.ConsoleSender{}
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		sms = notify.NewTwilioSender(sid, os.Getenv("TWILIO_AUTH_TOKEN"), os.Getenv("TWILIO_PHONE_NUMBER"))
	} else {
		log.Printf("TWILIO_ACCOUNT_SID not set; SMS codes are logged to console")
	}
	var email emailSender = notify.ConsoleSender{}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		email = notify.NewSendgridSender(key, os.Getenv("EMAIL_FROM_NAME"), os.Getenv("EMAIL_FROM"))
	} else {
		log.Printf("SENDGRID_API_KEY not set; emails are logged to console")
	}

	// Real-time messaging: session registry + gateway over the conversation
	// store adapter.
	registry := ws.NewSessionRegistry()
	gateway := ws.NewGateway(registry, convsStore, jwtMgr)

	srv := newServer(usersStore, classroomsStore, convsStore, lessonsStore, sms, email, jwtMgr, limiterStore)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.routes(gateway),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("API server listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
