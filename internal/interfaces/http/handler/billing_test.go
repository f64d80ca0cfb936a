package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/masjid/backend/internal/application/billing"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"github.com/masjid/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerationService struct {
	result *appbilling.GenerationResult
	err    error

	lastPeriod billing.Period
}

func (f *fakeGenerationService) GenerateForPeriod(_ context.Context, period billing.Period) (*appbilling.GenerationResult, error) {
	f.lastPeriod = period
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAllocationService struct {
	outcome *appbilling.AllocationOutcome
	bulk    *appbilling.BulkResult
	err     error

	lastRequest        appbilling.AllocationRequest
	lastSelections     []appbilling.BulkSelection
	lastMeta           billing.PaymentMeta
	lastIdempotencyKey string
}

func (f *fakeAllocationService) Allocate(_ context.Context, req appbilling.AllocationRequest) (*appbilling.AllocationOutcome, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeAllocationService) BulkAllocate(_ context.Context, selections []appbilling.BulkSelection, meta billing.PaymentMeta, idempotencyKey string) (*appbilling.BulkResult, error) {
	f.lastSelections = selections
	f.lastMeta = meta
	f.lastIdempotencyKey = idempotencyKey
	if f.err != nil {
		return nil, f.err
	}
	return f.bulk, nil
}

type fakeArrearsService struct {
	summary   *billing.ArrearsSummary
	summaries []billing.ArrearsSummary
	invoices  []billing.Invoice
	payments  []billing.Payment
	members   []billing.Member
	total     int64
	err       error

	lastFilter shared.Filter
}

func (f *fakeArrearsService) ArrearsFor(_ context.Context, _ uuid.UUID) (*billing.ArrearsSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *fakeArrearsService) ArrearsForAll(_ context.Context) ([]billing.ArrearsSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}

func (f *fakeArrearsService) PendingInvoicesFor(_ context.Context, _ uuid.UUID) ([]billing.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoices, nil
}

func (f *fakeArrearsService) InvoicesFor(_ context.Context, _ uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.invoices, f.total, nil
}

func (f *fakeArrearsService) PaymentsFor(_ context.Context, _ uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.payments, f.total, nil
}

func (f *fakeArrearsService) Members(_ context.Context, filter shared.Filter) ([]billing.Member, int64, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.members, f.total, nil
}

func setupBillingRouter(gen *fakeGenerationService, alloc *fakeAllocationService, arr *fakeArrearsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBillingHandler(gen, alloc, arr)

	r := gin.New()
	r.POST("/billing/periods/:period/generate", h.GenerateInvoices)
	r.POST("/billing/payments", h.AllocatePayment)
	r.POST("/billing/payments/bulk", h.BulkCollect)
	r.GET("/billing/members", h.ListMembers)
	r.GET("/billing/members/:id/arrears", h.GetMemberArrears)
	r.GET("/billing/arrears", h.ListArrears)
	r.GET("/billing/members/:id/invoices", h.ListInvoices)
	r.GET("/billing/members/:id/invoices/pending", h.ListPendingInvoices)
	r.GET("/billing/members/:id/payments", h.ListPayments)
	return r
}

func TestBillingHandler_GenerateInvoices(t *testing.T) {
	gen := &fakeGenerationService{
		result: &appbilling.GenerationResult{
			Period:    billing.NewPeriod(2026, time.March),
			Generated: 12,
			Skipped:   3,
		},
	}
	r := setupBillingRouter(gen, &fakeAllocationService{}, &fakeArrearsService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/periods/2026-03/generate", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03", gen.lastPeriod.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(12), data["generated"])
	assert.Equal(t, float64(3), data["skipped"])
}

func TestBillingHandler_GenerateInvoices_InvalidPeriod(t *testing.T) {
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, &fakeArrearsService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/periods/2026-13/generate", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeInvalidPeriod, resp.Error.Code)
}

func TestBillingHandler_AllocatePayment(t *testing.T) {
	memberID := uuid.New()
	alloc := &fakeAllocationService{
		outcome: &appbilling.AllocationOutcome{
			MemberID:     memberID,
			MemberName:   "Ahmad bin Ismail",
			ReceiptNo:    "SND-2026-000042",
			TotalApplied: valueobject.NewMoneyFromFloat(50),
			PaidAt:       time.Now(),
		},
	}
	r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

	body, _ := json.Marshal(gin.H{
		"member_id": memberID.String(),
		"amount":    50.0,
		"method":    "CASH",
		"remark":    "March dues",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, memberID, alloc.lastRequest.MemberID)
	assert.True(t, alloc.lastRequest.TotalAmount.Equals(valueobject.NewMoneyFromInt(50)))
	assert.Equal(t, billing.PaymentMethodCash, alloc.lastRequest.Meta.Method)
	assert.Equal(t, "March dues", alloc.lastRequest.Meta.Remark)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "SND-2026-000042", data["receipt_no"])
}

func TestBillingHandler_AllocatePayment_BankTransfer(t *testing.T) {
	memberID := uuid.New()
	bankID := uuid.New()
	alloc := &fakeAllocationService{outcome: &appbilling.AllocationOutcome{MemberID: memberID}}
	r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

	body, _ := json.Marshal(gin.H{
		"member_id":       memberID.String(),
		"amount":          120.0,
		"method":          "BANK_TRANSFER",
		"bank_account_id": bankID.String(),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, alloc.lastRequest.Meta.BankAccountID)
	assert.Equal(t, bankID, *alloc.lastRequest.Meta.BankAccountID)
}

func TestBillingHandler_AllocatePayment_ExactDecimalAmount(t *testing.T) {
	memberID := uuid.New()
	alloc := &fakeAllocationService{outcome: &appbilling.AllocationOutcome{MemberID: memberID}}
	r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

	// An amount with cents must reach the allocator exactly as submitted
	body := []byte(`{"member_id":"` + memberID.String() + `","amount":123.45,"method":"CASH"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	want, err := valueobject.NewMoneyFromString("123.45")
	require.NoError(t, err)
	assert.True(t, alloc.lastRequest.TotalAmount.Equals(want))
}

func TestBillingHandler_AllocatePayment_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{
			name: "missing member ID",
			body: gin.H{"amount": 50.0, "method": "CASH"},
		},
		{
			name: "zero amount",
			body: gin.H{"member_id": uuid.New().String(), "amount": 0, "method": "CASH"},
		},
		{
			name: "negative amount",
			body: gin.H{"member_id": uuid.New().String(), "amount": -10.0, "method": "CASH"},
		},
		{
			name: "unknown method",
			body: gin.H{"member_id": uuid.New().String(), "amount": 50.0, "method": "CHEQUE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, &fakeArrearsService{})

			body, _ := json.Marshal(tt.body)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/billing/payments", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBillingHandler_AllocatePayment_DomainErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "no outstanding invoices",
			err:          billing.ErrNoOutstandingInvoices,
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeNoOutstanding,
		},
		{
			name:         "contention",
			err:          billing.ErrContention,
			expectedCode: http.StatusConflict,
			expectedErr:  dto.ErrCodeContention,
		},
		{
			name:         "exceeds outstanding",
			err:          billing.ErrExceedsOutstanding,
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeExceedsOutstanding,
		},
		{
			name:         "member not found",
			err:          shared.ErrNotFound,
			expectedCode: http.StatusNotFound,
			expectedErr:  dto.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &fakeAllocationService{err: tt.err}
			r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

			body, _ := json.Marshal(gin.H{
				"member_id": uuid.New().String(),
				"amount":    50.0,
				"method":    "CASH",
			})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/billing/payments", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
		})
	}
}

func TestBillingHandler_BulkCollect(t *testing.T) {
	memberA := uuid.New()
	memberB := uuid.New()
	alloc := &fakeAllocationService{
		bulk: &appbilling.BulkResult{
			Results: []appbilling.AllocationOutcome{
				{MemberID: memberA, ReceiptNo: "SND-2026-000100"},
			},
			Failures: []appbilling.BulkFailure{
				{MemberID: memberB, Code: "STALE_SELECTION", Reason: "Selected invoice has no outstanding balance"},
			},
		},
	}
	r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

	body, _ := json.Marshal(gin.H{
		"selections": []gin.H{
			{"member_id": memberA.String(), "period": "2026-01"},
			{"member_id": memberA.String(), "period": "2026-02"},
			{"member_id": memberB.String(), "period": "2026-01"},
		},
		"method": "CASH",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "collect-2026-03-01-a")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, alloc.lastSelections, 3)
	assert.Equal(t, "collect-2026-03-01-a", alloc.lastIdempotencyKey)
	assert.Equal(t, "2026-01", alloc.lastSelections[0].Period.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["results"], 1)
	assert.Len(t, data["failures"], 1)
}

func TestBillingHandler_BulkCollect_EmptySelections(t *testing.T) {
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, &fakeArrearsService{})

	body, _ := json.Marshal(gin.H{"selections": []gin.H{}, "method": "CASH"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandler_BulkCollect_DuplicateSubmission(t *testing.T) {
	alloc := &fakeAllocationService{err: billing.ErrDuplicateSubmission}
	r := setupBillingRouter(&fakeGenerationService{}, alloc, &fakeArrearsService{})

	body, _ := json.Marshal(gin.H{
		"selections": []gin.H{{"member_id": uuid.New().String(), "period": "2026-01"}},
		"method":     "CASH",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/payments/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "collect-dup")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeDuplicateSubmission, resp.Error.Code)
}

func TestBillingHandler_GetMemberArrears(t *testing.T) {
	memberID := uuid.New()
	arr := &fakeArrearsService{
		summary: &billing.ArrearsSummary{
			MemberID:         memberID,
			MemberName:       "Fatimah binti Yusof",
			TotalOutstanding: valueobject.NewMoneyFromFloat(150),
			OverdueCount:     3,
		},
	}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members/"+memberID.String()+"/arrears", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Fatimah binti Yusof", data["member_name"])
	assert.Equal(t, float64(3), data["overdue_count"])
}

func TestBillingHandler_GetMemberArrears_InvalidID(t *testing.T) {
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, &fakeArrearsService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members/not-a-uuid/arrears", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandler_ListArrears(t *testing.T) {
	arr := &fakeArrearsService{
		summaries: []billing.ArrearsSummary{
			{MemberID: uuid.New(), TotalOutstanding: valueobject.NewMoneyFromFloat(200)},
			{MemberID: uuid.New(), TotalOutstanding: valueobject.NewMoneyFromFloat(50)},
		},
	}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/arrears", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 2)
}

func TestBillingHandler_ListPendingInvoices(t *testing.T) {
	memberID := uuid.New()
	inv, err := billing.NewInvoice(memberID, billing.NewPeriod(2026, time.January), valueobject.NewMoneyFromFloat(50), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	arr := &fakeArrearsService{invoices: []billing.Invoice{*inv}}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members/"+memberID.String()+"/invoices/pending", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)

	item := resp.Data.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2026-01", item["period"])
	assert.Equal(t, string(billing.InvoiceStatusUnpaid), item["status"])
	assert.Equal(t, memberID.String(), item["member_id"])
}

func TestBillingHandler_ListMembers(t *testing.T) {
	arr := &fakeArrearsService{
		members: []billing.Member{
			{
				ID:             uuid.New(),
				Name:           "Ahmad bin Ismail",
				Frequency:      billing.FrequencyMonthly,
				AmountPerCycle: valueobject.NewMoneyFromInt(50),
				StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Active:         true,
			},
		},
		total: 1,
	}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members?search=Ahmad&order_by=name&order_dir=asc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ahmad", arr.lastFilter.Search)
	assert.Equal(t, "name", arr.lastFilter.OrderBy)
	assert.Equal(t, "asc", arr.lastFilter.OrderDir)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)

	item := resp.Data.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Ahmad bin Ismail", item["name"])
	assert.Equal(t, string(billing.FrequencyMonthly), item["frequency"])
}

func TestBillingHandler_ListInvoices(t *testing.T) {
	memberID := uuid.New()
	inv, err := billing.NewInvoice(memberID, billing.NewPeriod(2026, time.February), valueobject.NewMoneyFromInt(50), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	arr := &fakeArrearsService{invoices: []billing.Invoice{*inv}, total: 14}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members/"+memberID.String()+"/invoices?page=1&page_size=5&order_by=period", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "period", arr.lastFilter.OrderBy)
	assert.Equal(t, 5, arr.lastFilter.PageSize)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(14), resp.Meta.Total)

	item := resp.Data.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2026-02", item["period"])
}

func TestBillingHandler_ListPayments(t *testing.T) {
	memberID := uuid.New()
	arr := &fakeArrearsService{
		payments: []billing.Payment{
			{
				InvoiceID: uuid.New(),
				MemberID:  memberID,
				Amount:    valueobject.NewMoneyFromFloat(50),
				Method:    billing.PaymentMethodCash,
				ReceiptNo: "SND-2026-000001",
				PaidAt:    time.Now(),
			},
		},
		total: 25,
	}
	r := setupBillingRouter(&fakeGenerationService{}, &fakeAllocationService{}, arr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/members/"+memberID.String()+"/payments?page=2&page_size=10", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, arr.lastFilter.Page)
	assert.Equal(t, 10, arr.lastFilter.PageSize)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(25), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)

	item := resp.Data.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "SND-2026-000001", item["receipt_no"])
}
