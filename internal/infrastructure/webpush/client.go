package webpush

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

const (
	p256PointLen   = 65
	authSecretLen  = 16
	vapidPrivLen   = 32
	defaultTTL     = 24 * 60 * 60
	defaultTimeout = 10 * time.Second
)

type Config struct {
	PublicKey  string
	PrivateKey string
	// Subject is a mailto: address or an https: URL identifying the sender.
	Subject string
	TTL     int
	Urgency string
	Timeout time.Duration
}

// Client sends encrypted Web Push messages authenticated with VAPID.
type Client struct {
	cfg    Config
	client webpush.HTTPClient
}

func NewClient(cfg Config) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient replaces the HTTP client used to reach push services.
func (c *Client) WithHTTPClient(hc webpush.HTTPClient) *Client {
	c.client = hc
	return c
}

// Validate checks that the VAPID key pair is present and decodes to P-256 keys.
func (c *Client) Validate() error {
	if c.cfg.PublicKey == "" || c.cfg.PrivateKey == "" {
		return fmt.Errorf("%w: VAPID public and private keys are required", domain.ErrConfiguration)
	}
	if b, err := decodeKey(c.cfg.PublicKey); err != nil || len(b) != p256PointLen || b[0] != 0x04 {
		return fmt.Errorf("%w: VAPID public key is not an uncompressed P-256 point", domain.ErrConfiguration)
	}
	if b, err := decodeKey(c.cfg.PrivateKey); err != nil || len(b) != vapidPrivLen {
		return fmt.Errorf("%w: VAPID private key is not a 32 byte P-256 scalar", domain.ErrConfiguration)
	}
	if c.cfg.Subject == "" {
		return fmt.Errorf("%w: push subject is required", domain.ErrConfiguration)
	}
	return nil
}

func (c *Client) Send(ctx context.Context, sub *domain.Subscription, payload domain.Payload) error {
	if u, err := url.Parse(sub.Endpoint); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &domain.DeliveryError{Endpoint: sub.Endpoint, Kind: domain.ErrEndpointRejected, Err: errors.New("invalid endpoint url")}
	}
	if err := checkSubscriptionKeys(sub); err != nil {
		return &domain.DeliveryError{Endpoint: sub.Endpoint, Kind: domain.ErrMalformedKeys, Err: err}
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      c.client,
		Subscriber:      strings.TrimPrefix(c.cfg.Subject, "mailto:"),
		TTL:             c.cfg.TTL,
		Urgency:         webpush.Urgency(c.cfg.Urgency),
		VAPIDPublicKey:  c.cfg.PublicKey,
		VAPIDPrivateKey: c.cfg.PrivateKey,
	})
	if err != nil {
		return classifyError(sub.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	kind := domain.ErrEndpointRejected
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		kind = domain.ErrEndpointExpired
	}
	derr := &domain.DeliveryError{Endpoint: sub.Endpoint, Kind: kind, StatusCode: resp.StatusCode}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		derr.Err = errors.New(msg)
	}
	return derr
}

// classifyError maps a failure before any response was received.
// Transport-level failures are network errors; anything else came from
// encryption or signing and points at bad key material.
func classifyError(endpoint string, err error) error {
	kind := domain.ErrMalformedKeys
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = domain.ErrNetwork
	}
	return &domain.DeliveryError{Endpoint: endpoint, Kind: kind, Err: err}
}

func checkSubscriptionKeys(sub *domain.Subscription) error {
	dh, err := decodeKey(sub.P256dh)
	if err != nil {
		return fmt.Errorf("p256dh: %w", err)
	}
	if len(dh) != p256PointLen || dh[0] != 0x04 {
		return fmt.Errorf("p256dh: want %d byte uncompressed point, got %d bytes", p256PointLen, len(dh))
	}
	auth, err := decodeKey(sub.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if len(auth) != authSecretLen {
		return fmt.Errorf("auth: want %d bytes, got %d", authSecretLen, len(auth))
	}
	return nil
}

// decodeKey accepts standard and URL-safe base64, padded or not.
func decodeKey(key string) ([]byte, error) {
	key = strings.TrimRight(key, "=")
	if b, err := base64.RawURLEncoding.DecodeString(key); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(key)
}

// GenerateVAPIDKeys returns a fresh key pair encoded as unpadded base64url.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
