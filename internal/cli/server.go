package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	stripeclient "github.com/stripe/stripe-go/v79/client"

	"mcqlab/internal/app"
	"mcqlab/internal/config"
	"mcqlab/internal/extract"
	"mcqlab/internal/genai"
	"mcqlab/internal/infra/memory"
	"mcqlab/internal/infra/postgres"
	rediscache "mcqlab/internal/infra/redis"
	transport "mcqlab/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the MCQ generation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	resourceRepo := postgres.NewResourceRepository(db)
	quizRepo := postgres.NewQuizRepository(db)
	stepRepo := postgres.NewStepRepository(db)
	billingRepo := postgres.NewBillingRepository(db)
	usageRepo := postgres.NewUsageRepository(db)
	performanceRepo := postgres.NewPerformanceRepository(db)
	userRepo := postgres.NewUserRepository(db)

	loader := postgres.NewQuizLoader(pool)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizCache app.QuizCache
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		quizCache = rediscache.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizCache = memory.NewQuizRepository(loader, quizTTL)
	}

	chain, err := buildProviderChain(cfg)
	if err != nil {
		return err
	}
	generator := genai.NewGenerator(chain)
	extractor := extract.NewExtractor()

	entitlement := app.NewEntitlementService(
		billingRepo, usageRepo, resourceRepo,
		cfg.Quota.FreeDailyLimit, cfg.Quota.ProPoints,
	)
	hub := app.NewProgressHub()
	submissions := app.NewSubmissionService(
		resourceRepo, quizRepo, stepRepo, extractor, generator, entitlement, hub,
	)
	quizzes := app.NewQuizService(quizCache, performanceRepo, resourceRepo)
	billing := app.NewBillingService(billingRepo, userRepo, entitlement)

	stripeAPI := &stripeclient.API{}
	stripeAPI.Init(cfg.Stripe.SecretKey, nil)

	api := transport.NewAPIHandler(submissions, quizzes, entitlement, extractor)
	lemonHook := transport.NewLemonWebhookHandler(billing, cfg.LemonSqueezy.WebhookSecret)
	stripeHook := transport.NewStripeWebhookHandler(billing, cfg.Stripe.WebhookSecret)
	checkout := transport.NewCheckoutHandler(stripeAPI, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	wsHandler := transport.NewWSHandler(hub)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("POST /api/webhook/lemon", lemonHook)
	mux.Handle("POST /api/payments/webhook", stripeHook)
	mux.Handle("POST /api/payments/create-checkout-session", checkout)
	mux.HandleFunc("GET /ws/generation", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Submissions block on inference; the write timeout has to outlast the
		// whole provider chain.
		WriteTimeout: 3 * time.Minute,
	}

	go func() {
		log.Printf("starting mcqlab on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildProviderChain assembles the inference fallback order from whichever
// providers have keys configured.
func buildProviderChain(cfg config.Config) (*genai.Chain, error) {
	var providers []genai.Provider
	if cfg.GenAI.OpenAI.APIKey != "" {
		providers = append(providers, genai.NewOpenAIProvider("openai", cfg.GenAI.OpenAI))
	}
	if cfg.GenAI.Groq.APIKey != "" {
		providers = append(providers, genai.NewOpenAIProvider("groq", cfg.GenAI.Groq))
	}
	if cfg.GenAI.Gemini.APIKey != "" {
		providers = append(providers, genai.NewGeminiProvider(cfg.GenAI.Gemini))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no inference provider configured")
	}
	return genai.NewChain(providers...), nil
}
