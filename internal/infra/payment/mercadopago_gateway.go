package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.CheckoutProvider = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway implements CheckoutProvider using direct HTTP calls
// against the Checkout Preferences and Payments APIs.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	backBaseURL string // our public base URL for back/webhook URLs
	sandbox     bool
	client      *http.Client
}

func NewMercadoPagoGateway(accessToken, backBaseURL string, sandbox bool, timeout time.Duration) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, domain.ErrConfiguration
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     "https://api.mercadopago.com",
		backBaseURL: backBaseURL,
		sandbox:     sandbox,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

type preferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferenceRequest struct {
	Items             []preferenceItem  `json:"items"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata"`
	BackURLs          struct {
		Success string `json:"success"`
		Failure string `json:"failure"`
		Pending string `json:"pending"`
	} `json:"back_urls"`
	NotificationURL string `json:"notification_url"`
	AutoReturn      string `json:"auto_return"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreateCheckout opens a checkout preference for the plan. The user id
// travels as external_reference and comes back on the payment lookup.
func (g *MercadoPagoGateway) CreateCheckout(ctx context.Context, plan *model.Plan, externalReference string) (string, string, error) {
	reqBody := preferenceRequest{
		Items: []preferenceItem{{
			Title:     plan.Title,
			Quantity:  1,
			UnitPrice: float64(plan.Price) / 100,
		}},
		ExternalReference: externalReference,
		Metadata:          map[string]string{"plan_id": plan.ID},
		NotificationURL:   g.backBaseURL + "/webhook/payments",
		AutoReturn:        "approved",
	}
	reqBody.BackURLs.Success = g.backBaseURL + "/checkout/success"
	reqBody.BackURLs.Failure = g.backBaseURL + "/checkout/failure"
	reqBody.BackURLs.Pending = g.backBaseURL + "/checkout/pending"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("marshal preference request: %w", err)
	}

	endpoint := g.baseURL + "/checkout/preferences"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", "", domain.ErrTransient
		}
		return "", "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: preference status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var pref preferenceResponse
	if err := json.Unmarshal(body, &pref); err != nil {
		return "", "", fmt.Errorf("unmarshal preference response: %w, body: %s", err, string(body))
	}

	redirect := pref.InitPoint
	if g.sandbox && pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}
	if pref.ID == "" || redirect == "" {
		return "", "", fmt.Errorf("%w: empty preference", domain.ErrUpstream)
	}
	return pref.ID, redirect, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	Metadata          struct {
		PlanID string `json:"plan_id"`
	} `json:"metadata"`
}

// GetPayment resolves the authoritative payment state by id.
func (g *MercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentInfo, error) {
	endpoint := g.baseURL + "/v1/payments/" + url.PathEscape(paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrTransient
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, domain.ErrTransient
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: payment lookup status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var p paymentResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment response: %w, body: %s", err, string(body))
	}

	// Round instead of truncate: 19.99 is not exactly representable
	// and would otherwise land on 1998 cents.
	amount := int64(math.Round(p.TransactionAmount * 100))
	return &model.PaymentInfo{
		ID:                p.ID.String(),
		Status:            p.Status,
		ExternalReference: p.ExternalReference,
		PlanID:            p.Metadata.PlanID,
		Amount:            amount,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// SetBaseURL overrides the API endpoint. Tests point it at a local stub.
func (g *MercadoPagoGateway) SetBaseURL(u string) { g.baseURL = u }
