package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
)

type HTTPProcessorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProcessorClient(cfg config.ProcessorConfig) *HTTPProcessorClient {
	return &HTTPProcessorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

// Charge creates a charge. The idempotency key lets the processor collapse
// resubmissions of the same attempt into one charge.
func (c *HTTPProcessorClient) Charge(ctx context.Context, req application.ChargeRequest, idempotencyKey string) (*application.ChargeResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/charges", c.baseURL)
	return sendRequest[application.ChargeRequest, application.ChargeResponse](c, ctx, http.MethodPost, endpoint, &req, idempotencyKey)
}

// FindCharge looks up the charge created under idempotencyKey. A 404
// ProcessorError means the processor never created one.
func (c *HTTPProcessorClient) FindCharge(ctx context.Context, idempotencyKey string) (*application.ChargeResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/charges/search?idempotency_key=%s", c.baseURL, url.QueryEscape(idempotencyKey))
	result, err := sendRequest[any, chargeSearchResponse](c, ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, &application.ProcessorError{
			Code:       "charge_not_found",
			Message:    "no charge for idempotency key",
			StatusCode: http.StatusNotFound,
		}
	}

	ch := result.Data[0]
	return &application.ChargeResponse{
		ID:             ch.ID,
		Amount:         ch.Amount,
		Currency:       ch.Currency,
		Status:         ch.Status,
		FailureCode:    ch.FailureCode,
		FailureMessage: ch.FailureMessage,
		Created:        ch.Created,
	}, nil
}

func sendRequest[Req any, Resp any](c *HTTPProcessorClient, ctx context.Context, method, endpoint string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
			return nil, &application.ProcessorError{
				Code:       http.StatusText(resp.StatusCode),
				Message:    string(body),
				StatusCode: resp.StatusCode,
			}
		}
		code := errResp.Error.Code
		if code == "" {
			code = errResp.Error.Type
		}
		return nil, &application.ProcessorError{
			Code:       code,
			Message:    errResp.Error.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &out, nil
}
