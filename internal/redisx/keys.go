package redisx

import "time"

const (
	// Rendered menu text, dropped whenever the product catalog changes:
	// menu:text
	KeyMenuText = "menu:text"

	// Inbound WhatsApp message dedup: dedup:wamsg:{message_id}
	KeyMessageDedup = "dedup:wamsg:%s"

	// Payment callback dedup fast path (the transactions table is the source
	// of truth): dedup:payment:{tx_ref}
	KeyPaymentDedup = "dedup:payment:%s"

	// Event processing dedup per consumer: dedup:{service}:{event_id}
	KeyEventDedup = "dedup:%s:%s"

	// Conversation snapshot for the 'continue' command: convo:backup:{phone}
	KeyContextBackup = "convo:backup:%s"

	// Review request sent marker, one request per order: review:sent:{order_id}
	KeyReviewSent = "review:sent:%d"
)

var (
	TTLMenuCache     = time.Hour
	TTLMessageDedup  = 24 * time.Hour
	TTLPaymentDedup  = 48 * time.Hour
	TTLEventDedup    = 48 * time.Hour
	TTLContextBackup = 24 * time.Hour
	TTLReviewSent    = 7 * 24 * time.Hour
)
