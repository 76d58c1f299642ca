package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Homeboy20/kwetupizza-bot/internal/config"
	"github.com/Homeboy20/kwetupizza-bot/internal/kafka"
	"github.com/Homeboy20/kwetupizza-bot/internal/notifier"
	"github.com/Homeboy20/kwetupizza-bot/internal/orders"
	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
	"github.com/Homeboy20/kwetupizza-bot/internal/sms"
	"github.com/Homeboy20/kwetupizza-bot/internal/wa"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		ServiceName:   "notifier",
		AdminWhatsApp: cfg.AdminWhatsApp,
		AdminSMS:      cfg.AdminSMS,
		WA:            wa.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.WhatsAppAPIVersion),
		SMS:           sms.NewClient(cfg.SMSUsername, cfg.SMSPassword, cfg.SMSSenderID),
		Redis:         rdb,
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "notifier", []string{
		orders.TopicOrderCreated,
		orders.TopicPaymentCompleted,
		orders.TopicPaymentFailed,
		orders.TopicReviewReceived,
	}, 4)

	log.Printf("notifier consuming from %v", cfg.KafkaBrokers)
	if err := consumer.Start(ctx, svc.Handle); err != nil {
		log.Fatalf("consumer: %v", err)
	}
	log.Println("bye")
}
