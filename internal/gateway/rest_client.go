package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rugs-trade-bot-go/internal/config"
)

const (
	headerAPIKey    = "X-API-KEY"
	headerSignature = "X-SIGNATURE"
	maxRetries      = 3
)

// RestClient talks to the remote execution gateway. It is both an Executor and a
// BalanceSource.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
	backoff   time.Duration
	now       func() time.Time
	orderID   func() string
}

var (
	_ Executor      = (*RestClient)(nil)
	_ BalanceSource = (*RestClient)(nil)
)

// NewRestClient creates a gateway client for cfg.BaseURL.
func NewRestClient(cfg config.Gateway, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	}

	logger = logger.Named("gateway")
	logger.Info("Using execution gateway", zap.String("base_url", cfg.BaseURL))

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		backoff:   time.Second,
		now:       time.Now,
		orderID:   uuid.NewString,
	}
}

// sign returns the hex HMAC-SHA256 of data under the secret key.
func (c *RestClient) sign(data []byte) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// AvailableBalance fetches the wallet balance held by the gateway.
func (c *RestClient) AvailableBalance(ctx context.Context) (float64, error) {
	req := c.client.R().
		SetHeader(headerAPIKey, c.apiKey).
		SetResult(&balanceResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/balance", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return resp.Result().(*balanceResponse).Balance, nil
}

// orderRequest is the POST /orders body. ClientOrderID stays the same across retries
// of one submission so the gateway can deduplicate them.
type orderRequest struct {
	ClientOrderID string  `json:"clientOrderId"`
	RoundID       string  `json:"roundId"`
	Side          string  `json:"side"`
	Size          float64 `json:"size"`
	Multiplier    float64 `json:"multiplier"`
	RugPulled     bool    `json:"rugPulled"`
	Timestamp     int64   `json:"timestamp"`
}

// SubmitBuy places a buy for the order's round.
func (c *RestClient) SubmitBuy(ctx context.Context, order Order) (*Confirmation, error) {
	return c.submit(ctx, SideBuy, order)
}

// SubmitSell closes the stake held in the order's round.
func (c *RestClient) SubmitSell(ctx context.Context, order Order) (*Confirmation, error) {
	return c.submit(ctx, SideSell, order)
}

func (c *RestClient) submit(ctx context.Context, side string, order Order) (*Confirmation, error) {
	clientOrderID := c.orderID()
	body, err := json.Marshal(orderRequest{
		ClientOrderID: clientOrderID,
		RoundID:       order.RoundID,
		Side:          side,
		Size:          order.Size,
		Multiplier:    order.Multiplier,
		RugPulled:     order.RugPulled,
		Timestamp:     c.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	req := c.client.R().
		SetHeader(headerAPIKey, c.apiKey).
		SetHeader(headerSignature, c.sign(body)).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&Confirmation{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		c.logger.Error("Failed to submit order after multiple attempts",
			zap.Error(err),
			zap.String("round_id", order.RoundID),
			zap.String("side", side),
			zap.String("client_order_id", clientOrderID))
		return nil, fmt.Errorf("failed to submit %s order: %w", side, err)
	}

	conf := resp.Result().(*Confirmation)
	if conf.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: %s order for %s has status %q", ErrNotConfirmed, side, order.RoundID, conf.Status)
	}

	c.logger.Info("Order confirmed",
		zap.String("round_id", order.RoundID),
		zap.String("side", side),
		zap.String("signature", conf.Signature),
		zap.Float64("amount", conf.Amount))
	return conf, nil
}

// doRequest executes req with rate limiting, retrying throttling, server and network
// errors with exponential backoff or the server's Retry-After.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot:
				shouldRetry = true
				if seconds, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= http.StatusInternalServerError:
				shouldRetry = true
			}
			err = fmt.Errorf("status %s: %s", resp.Status(), resp.String())
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with %w", err)
		}
		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// 1x, 2x, 4x the base backoff
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
