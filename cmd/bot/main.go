package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Homeboy20/kwetupizza-bot/internal/config"
	"github.com/Homeboy20/kwetupizza-bot/internal/convo"
	"github.com/Homeboy20/kwetupizza-bot/internal/engine"
	"github.com/Homeboy20/kwetupizza-bot/internal/httpx"
	"github.com/Homeboy20/kwetupizza-bot/internal/kafka"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/payment"
	"github.com/Homeboy20/kwetupizza-bot/internal/postgres"
	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
	"github.com/Homeboy20/kwetupizza-bot/internal/sched"
	"github.com/Homeboy20/kwetupizza-bot/internal/sms"
	"github.com/Homeboy20/kwetupizza-bot/internal/vault"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Secrets stored through the vault override blank env values, so rotating
	// a credential doesn't need a redeploy.
	if cfg.VaultKey != "" {
		v, err := vault.New(cfg.VaultKey)
		if err != nil {
			log.Fatalf("vault: %v", err)
		}
		opts := &vault.OptionStore{DB: pool, Vault: v}
		loadSecret(ctx, opts, "whatsapp_token", &cfg.WhatsAppToken)
		loadSecret(ctx, opts, "flw_secret_key", &cfg.FlwSecretKey)
		loadSecret(ctx, opts, "flw_webhook_secret", &cfg.FlwWebhookSecret)
		loadSecret(ctx, opts, "nextsms_password", &cfg.SMSPassword)
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, "", 1024)
	producer.Start(ctx)

	repo := &orders.Repo{DB: pool}
	catalog := &orders.Catalog{Repo: repo, Redis: rdb, Currency: cfg.Currency}
	store := &convo.Store{DB: pool, Redis: rdb}
	waClient := wa.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.WhatsAppAPIVersion)
	smsClient := sms.NewClient(cfg.SMSUsername, cfg.SMSPassword, cfg.SMSSenderID)
	scheduler := sched.New()
	defer scheduler.Stop()

	coordinator := &payment.Coordinator{
		Repo:           repo,
		Convo:          store,
		Flw:            payment.NewFlutterwaveClient(cfg.FlwSecretKey),
		WA:             waClient,
		SMS:            smsClient,
		Bus:            producer,
		Redis:          rdb,
		ServiceName:    cfg.ServiceName,
		BusinessName:   cfg.BusinessName,
		Currency:       cfg.Currency,
		ReviewsEnabled: cfg.ReviewsEnabled,
		ReviewDelay:    cfg.ReviewDelay,
		ScheduleReview: scheduler.After,
	}

	eng := &engine.Engine{
		Store:             store,
		Menu:              catalog,
		WA:                waClient,
		Checkout:          coordinator,
		Orders:            repo,
		BusinessName:      cfg.BusinessName,
		Currency:          cfg.Currency,
		SupportNumber:     cfg.SupportNumber,
		PublicURL:         cfg.PublicURL,
		InactivityTimeout: cfg.InactivityTimeout,
		ServiceFeeCents:   int64(cfg.ServiceFeeCents),
		ServiceFeeLabel:   cfg.ServiceFeeLabel,
		Premium:           engine.DefaultPremiumOptions(),
	}

	srv := &httpx.Server{
		Webhook: &httpx.WebhookHandler{
			VerifyToken: cfg.WhatsAppVerifyToken,
			AppSecret:   cfg.WhatsAppAppSecret,
			Engine:      eng,
			Redis:       rdb,
			Sched:       scheduler,
		},
		Payments: &httpx.PaymentHandler{
			WebhookSecret: cfg.FlwWebhookSecret,
			Coordinator:   coordinator,
		},
		Repo:    repo,
		Catalog: catalog,
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	producer.WaitClosed()
	log.Println("bye")
}

func loadSecret(ctx context.Context, opts *vault.OptionStore, name string, dst *string) {
	v, err := opts.GetSecureOption(ctx, name)
	if err != nil {
		log.Printf("vault option %s: %v", name, err)
		return
	}
	if v != "" {
		*dst = v
	}
}
