package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest/handlers"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockPaymentCreator struct {
	mock.Mock
}

func (m *mockPaymentCreator) CreatePayment(ctx context.Context, cmd services.CreatePaymentCommand) (*services.CreatePaymentResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreatePaymentResult), args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	payments *mockPaymentCreator
	pingErr  error
	doc      *openapi3.T
	contract routers.Router
	registry *prometheus.Registry
	server   http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupSuite() {
	doc, err := rest.LoadOpenAPI(context.Background())
	s.Require().NoError(err)
	s.doc = doc

	s.contract, err = gorillamux.NewRouter(doc)
	s.Require().NoError(err)
}

func (s *HandlersTestSuite) SetupTest() {
	s.payments = new(mockPaymentCreator)
	s.pingErr = nil
	s.registry = prometheus.NewRegistry()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.NewHandlers(s.payments, map[string]handlers.Pinger{
		"postgres": handlers.PingFunc(func(context.Context) error { return s.pingErr }),
	}, logger)

	server, err := handlers.NewRouter(h, handlers.RouterConfig{
		Doc:            s.doc,
		Metrics:        observability.NewMetrics(s.registry),
		Gatherer:       s.registry,
		RequestTimeout: 5 * time.Second,
	})
	s.Require().NoError(err)
	s.server = server
}

func (s *HandlersTestSuite) TearDownTest() {
	s.payments.AssertExpectations(s.T())
}

// ============================================================================
// Helpers
// ============================================================================

func (s *HandlersTestSuite) postPayment(body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.server.ServeHTTP(rr, req)

	s.assertMatchesContract(req, rr, body)
	return rr
}

// assertMatchesContract checks the response against the documented API.
func (s *HandlersTestSuite) assertMatchesContract(req *http.Request, rr *httptest.ResponseRecorder, body string) {
	req = req.Clone(context.Background())
	req.Body = io.NopCloser(bytes.NewBufferString(body))

	route, pathParams, err := s.contract.FindRoute(req)
	s.Require().NoError(err)

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{ExcludeRequestBody: true},
	}
	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 rr.Code,
		Header:                 rr.Header(),
		Body:                   io.NopCloser(bytes.NewReader(rr.Body.Bytes())),
	})
	s.NoError(err, "response does not match the API contract: %s", rr.Body.String())
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeEnvelope(t, rr)
	detail, ok := resp["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", rr.Body.String())
	return detail["code"].(string)
}

// ============================================================================
// POST /api/payments
// ============================================================================

func (s *HandlersTestSuite) TestCreatePayment_Success() {
	s.payments.On("CreatePayment", mock.Anything, services.CreatePaymentCommand{
		OrderID:        "o1",
		Token:          "tok_valid",
		UserID:         "u1",
		IdempotencyKey: "idem-1",
	}).Return(&services.CreatePaymentResult{PaymentID: "pay_1"}, nil).Once()

	rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{
		"X-User-Id":       "u1",
		"Idempotency-Key": "idem-1",
	})

	s.Equal(http.StatusCreated, rr.Code)
	resp := decodeEnvelope(s.T(), rr)
	s.Equal(true, resp["success"])
	s.Equal("pay_1", resp["data"].(map[string]any)["id"])
}

func (s *HandlersTestSuite) TestCreatePayment_ReplayReturnsOK() {
	s.payments.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&services.CreatePaymentResult{PaymentID: "pay_1", Replayed: true}, nil).Once()

	rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{"X-User-Id": "u1"})

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlersTestSuite) TestCreatePayment_MissingIdentity() {
	rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, nil)

	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal(application.ErrCodeUnauthenticated, errorCode(s.T(), rr))
	s.payments.AssertNotCalled(s.T(), "CreatePayment", mock.Anything, mock.Anything)
}

func (s *HandlersTestSuite) TestCreatePayment_BodyRejectedByContract() {
	cases := []struct {
		name string
		body string
	}{
		{"missing token", `{"orderId":"o1"}`},
		{"empty order id", `{"token":"tok","orderId":""}`},
		{"wrong type", `{"token":42,"orderId":"o1"}`},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := s.postPayment(tc.body, map[string]string{"X-User-Id": "u1"})
			s.Equal(http.StatusBadRequest, rr.Code)
			s.Equal(application.ErrCodeValidation, errorCode(s.T(), rr))
		})
	}
	s.payments.AssertNotCalled(s.T(), "CreatePayment", mock.Anything, mock.Anything)
}

func (s *HandlersTestSuite) TestCreatePayment_ErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not owner", domain.NewNotAuthorizedError(), http.StatusUnauthorized, domain.ErrCodeNotAuthorized},
		{"unknown order", domain.NewOrderNotFoundError("o1"), http.StatusNotFound, domain.ErrCodeOrderNotFound},
		{"cancelled order", domain.NewInvalidStateError("order is cancelled"), http.StatusBadRequest, domain.ErrCodeInvalidState},
		{"in flight", application.NewPaymentInProgressError("o1"), http.StatusConflict, application.ErrCodePaymentInProgress},
		{"declined", application.NewProcessorDeclinedError(&application.ProcessorError{
			Code: "card_declined", Message: "declined", StatusCode: 402,
		}), http.StatusUnprocessableEntity, application.ErrCodeProcessorDeclined},
		{"outcome unknown", application.NewChargeOutcomeUnknownError(errors.New("timeout")), http.StatusGatewayTimeout, application.ErrCodeChargeOutcomeUnknown},
		{"not recorded", application.NewRecorderError(errors.New("db down")), http.StatusInternalServerError, application.ErrCodePaymentNotRecorded},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.payments.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{"X-User-Id": "u1"})

			s.Equal(tc.status, rr.Code)
			s.Equal(tc.code, errorCode(s.T(), rr))
		})
	}
}

func (s *HandlersTestSuite) TestCreatePayment_InternalErrorHidesCause() {
	s.payments.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, application.NewInternalError(errors.New("pq: password authentication failed"))).Once()

	rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{"X-User-Id": "u1"})

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.NotContains(rr.Body.String(), "password")
}

func (s *HandlersTestSuite) TestCreatePayment_PanicRecovered() {
	s.payments.On("CreatePayment", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(nil, nil).Once()

	rr := s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{"X-User-Id": "u1"})

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.Equal(application.ErrCodeInternal, errorCode(s.T(), rr))
}

// ============================================================================
// Operational endpoints
// ============================================================================

func (s *HandlersTestSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.server.ServeHTTP(rr, req)
	s.Equal(http.StatusOK, rr.Code)
	s.assertMatchesContract(req, rr, "")

	s.pingErr = errors.New("connection refused")
	rr = httptest.NewRecorder()
	s.server.ServeHTTP(rr, req)
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.assertMatchesContract(req, rr, "")
}

func (s *HandlersTestSuite) TestDocsAndMetricsServed() {
	for _, path := range []string{"/openapi.json", "/docs/swagger.json", "/metrics"} {
		rr := httptest.NewRecorder()
		s.server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		s.Equal(http.StatusOK, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	s.server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/docs/swagger.json", nil))
	s.Contains(rr.Body.String(), `"/payments"`)
}

func (s *HandlersTestSuite) TestRequestsAreCounted() {
	s.payments.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&services.CreatePaymentResult{PaymentID: "pay_1"}, nil).Once()

	s.postPayment(`{"token":"tok_valid","orderId":"o1"}`, map[string]string{"X-User-Id": "u1"})

	families, err := s.registry.Gather()
	s.Require().NoError(err)

	found := false
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == "/api/payments" {
					found = true
				}
			}
		}
	}
	s.True(found, "expected an http metric labelled with the route pattern")
}
