// Package push is the transport boundary for Web Push delivery. Provider
// responses are converted here into structured errors so the delivery engine
// branches on data instead of provider-specific failure types.
package push

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"booking-notifications/internal/common/config"
	commonerrors "booking-notifications/internal/common/errors"
)

// Subscription is the transport-level view of one registered device.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender delivers an encrypted payload to a single device.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// WebPushSender sends through the Web Push protocol with VAPID auth.
type WebPushSender struct {
	options webpush.Options
}

// NewWebPushSender validates the transport credentials. Missing VAPID keys
// are a setup defect: no send can possibly succeed without them.
func NewWebPushSender(cfg config.PushConfig) (*WebPushSender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, commonerrors.NewConfigurationError("VAPID key pair is not configured")
	}

	return &WebPushSender{
		options: webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.TTL,
		},
	}, nil
}

// Send pushes payload to the device. 404 and 410 mean the push service will
// never accept messages for this endpoint again and map to a permanent
// failure; every other non-2xx status and any network error maps to a
// transient failure that the retry executor may attempt again.
func (s *WebPushSender) Send(ctx context.Context, sub Subscription, payload []byte) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &opts)
	if err != nil {
		return commonerrors.NewTransientDeliveryError(sub.Endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return commonerrors.NewPermanentDeliveryError(sub.Endpoint, resp.StatusCode)
	default:
		return commonerrors.NewTransientDeliveryError(sub.Endpoint, statusError(resp.StatusCode))
	}
}

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("push service returned %d %s", int(e), http.StatusText(int(e)))
}
