package sales_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/sales"
)

func newTestRouter(store *memStore) *chi.Mux {
	svc := &sales.Service{
		Store:            store,
		Validate:         validator.New(),
		Logger:           zerolog.Nop(),
		InvoicePrefix:    "INV",
		DefaultTaxMethod: pricing.TaxExclusive,
	}
	handler := sales.NewHandler(sales.HandlerConfig{Service: svc})

	r := chi.NewRouter()
	r.Post("/sales", withActor("cashier-1", handler.Create))
	r.Post("/sales/preview", handler.Preview)
	r.Get("/sales", handler.List)
	r.Get("/sales/{id}", handler.Get)
	return r
}

func withActor(actor string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(common.WithActorID(r.Context(), actor)))
	}
}

func TestCreateEndpointSettlesSale(t *testing.T) {
	p := product("50", 10)
	store := newMemStore(p)
	router := newTestRouter(store)

	body := `{"paymentMethod":"CASH","paidAmount":110,"lines":[{"productId":"` + p.ID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Data sales.Sale `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Regexp(t, `^INV-\d{6}-\d{6}-\d{3}$`, resp.Data.InvoiceNo)
	require.Equal(t, "cashier-1", resp.Data.ActorID)
	require.True(t, resp.Data.GrandTotal.Equal(dec("110.00")), "grand %s", resp.Data.GrandTotal)
	require.EqualValues(t, 8, store.products[p.ID].StockQty)
}

func TestCreateEndpointRejectsOversell(t *testing.T) {
	p := product("50", 1)
	store := newMemStore(p)
	router := newTestRouter(store)

	body := `{"paymentMethod":"CASH","lines":[{"productId":"` + p.ID.String() + `","quantity":5}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				ProductID string `json:"productId"`
				Requested int64  `json:"requested"`
				Available int64  `json:"available"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, common.CodeInsufficientStock, resp.Error.Code)
	require.Equal(t, p.ID.String(), resp.Error.Details.ProductID)
	require.EqualValues(t, 5, resp.Error.Details.Requested)
	require.EqualValues(t, 1, resp.Error.Details.Available)
}

func TestCreateEndpointValidation(t *testing.T) {
	router := newTestRouter(newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{"paymentMethod":"CASH","lines":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeValidation)
}

func TestCreateEndpointMalformedJSON(t *testing.T) {
	router := newTestRouter(newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{"paymentMethod":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEndpointRequiresActor(t *testing.T) {
	p := product("50", 10)
	store := newMemStore(p)
	svc := &sales.Service{Store: store, Validate: validator.New(), Logger: zerolog.Nop()}
	handler := sales.NewHandler(sales.HandlerConfig{Service: svc})

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeUnauthorized)
}

func TestPreviewEndpoint(t *testing.T) {
	p := product("100", 5)
	store := newMemStore(p)
	router := newTestRouter(store)

	body := `{"discount":{"type":"PERCENT","value":10},"lines":[{"productId":"` + p.ID.String() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales/preview", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data pricing.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.DiscountTotal.Equal(dec("10.00")), "discount %s", resp.Data.DiscountTotal)
	require.EqualValues(t, 5, store.products[p.ID].StockQty)
}

func TestGetEndpointNotFound(t *testing.T) {
	router := newTestRouter(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/sales/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeNotFound)
}

func TestGetEndpointInvalidID(t *testing.T) {
	router := newTestRouter(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/sales/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpointPagination(t *testing.T) {
	p := product("10", 100)
	store := newMemStore(p)
	router := newTestRouter(store)

	for i := 0; i < 3; i++ {
		body := `{"paymentMethod":"CASH","lines":[{"productId":"` + p.ID.String() + `","quantity":1}]}`
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/sales?page=1&limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Pagination.Page)
	require.Equal(t, 2, resp.Pagination.PerPage)
	require.Equal(t, 3, resp.Pagination.TotalItems)
}
