package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/masjid/backend/internal/application/billing"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"github.com/masjid/backend/internal/interfaces/http/dto"
)

// GenerationService generates invoices for a billing period
type GenerationService interface {
	GenerateForPeriod(ctx context.Context, period billing.Period) (*appbilling.GenerationResult, error)
}

// AllocationService applies payments across outstanding invoices
type AllocationService interface {
	Allocate(ctx context.Context, req appbilling.AllocationRequest) (*appbilling.AllocationOutcome, error)
	BulkAllocate(ctx context.Context, selections []appbilling.BulkSelection, meta billing.PaymentMeta, idempotencyKey string) (*appbilling.BulkResult, error)
}

// ArrearsQueryService reads the member directory, outstanding balances,
// invoice ledgers and payment history
type ArrearsQueryService interface {
	ArrearsFor(ctx context.Context, memberID uuid.UUID) (*billing.ArrearsSummary, error)
	ArrearsForAll(ctx context.Context) ([]billing.ArrearsSummary, error)
	PendingInvoicesFor(ctx context.Context, memberID uuid.UUID) ([]billing.Invoice, error)
	InvoicesFor(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error)
	PaymentsFor(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error)
	Members(ctx context.Context, filter shared.Filter) ([]billing.Member, int64, error)
}

// BillingHandler exposes invoice generation, payment collection and
// arrears queries
type BillingHandler struct {
	BaseHandler
	generation GenerationService
	allocation AllocationService
	arrears    ArrearsQueryService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(
	generation GenerationService,
	allocation AllocationService,
	arrears ArrearsQueryService,
) *BillingHandler {
	return &BillingHandler{
		generation: generation,
		allocation: allocation,
		arrears:    arrears,
	}
}

// GenerateInvoices godoc
// @ID           generateBillingInvoices
// @Summary      Generate invoices for a period
// @Description  Creates invoices for every active member due in the given period. Members who already hold an invoice for the period are skipped, so re-running is safe.
// @Tags         billing
// @Produce      json
// @Param        period path string true "Billing period (YYYY-MM)"
// @Success      200 {object} APIResponse[appbilling.GenerationResult]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/periods/{period}/generate [post]
func (h *BillingHandler) GenerateInvoices(c *gin.Context) {
	period, err := billing.ParsePeriod(c.Param("period"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result, err := h.generation.GenerateForPeriod(c.Request.Context(), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// AllocatePayment godoc
// @ID           allocateBillingPayment
// @Summary      Record a payment for a member
// @Description  Applies the amount across the member's outstanding invoices, oldest period first. The split is decided server-side; all created payment rows share one receipt number.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        request body dto.AllocatePaymentRequest true "Payment details"
// @Success      201 {object} APIResponse[appbilling.AllocationOutcome]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/payments [post]
func (h *BillingHandler) AllocatePayment(c *gin.Context) {
	var req dto.AllocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		h.BadRequest(c, "Invalid member ID format")
		return
	}

	amount := valueobject.NewMoney(*req.Amount)
	if !amount.IsPositive() {
		h.HandleDomainError(c, billing.ErrInvalidAmount)
		return
	}

	meta, err := req.PaymentMeta()
	if err != nil {
		h.BadRequest(c, "Invalid bank account ID format")
		return
	}

	outcome, err := h.allocation.Allocate(c.Request.Context(), appbilling.AllocationRequest{
		MemberID:    memberID,
		TotalAmount: amount,
		Meta:        meta,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, outcome)
}

// BulkCollect godoc
// @ID           bulkCollectBillingPayments
// @Summary      Collect payments for multiple members at once
// @Description  Collects the outstanding amount of each selected (member, period) invoice. Each member's batch commits independently; failed members are reported without rolling back the others. Pass an Idempotency-Key header to guard against double submission.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client-generated key to deduplicate retried submissions"
// @Param        request body dto.BulkCollectRequest true "Selections and payment details"
// @Success      200 {object} APIResponse[appbilling.BulkResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /billing/payments/bulk [post]
func (h *BillingHandler) BulkCollect(c *gin.Context) {
	var req dto.BulkCollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	selections := make([]appbilling.BulkSelection, 0, len(req.Selections))
	for _, sel := range req.Selections {
		memberID, err := uuid.Parse(sel.MemberID)
		if err != nil {
			h.BadRequest(c, "Invalid member ID format")
			return
		}
		period, err := billing.ParsePeriod(sel.Period)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		selections = append(selections, appbilling.BulkSelection{
			MemberID: memberID,
			Period:   period,
		})
	}

	meta, err := req.PaymentMeta()
	if err != nil {
		h.BadRequest(c, "Invalid bank account ID format")
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	result, err := h.allocation.BulkAllocate(c.Request.Context(), selections, meta, idempotencyKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetMemberArrears godoc
// @ID           getBillingMemberArrears
// @Summary      Get a member's arrears summary
// @Description  Returns the member's total outstanding balance and unpaid periods, oldest first
// @Tags         billing
// @Produce      json
// @Param        id path string true "Member ID"
// @Success      200 {object} APIResponse[billing.ArrearsSummary]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/members/{id}/arrears [get]
func (h *BillingHandler) GetMemberArrears(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid member ID format")
		return
	}

	summary, err := h.arrears.ArrearsFor(c.Request.Context(), memberID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ListArrears godoc
// @ID           listBillingArrears
// @Summary      List arrears for all members
// @Description  Returns an arrears summary for every member who owes anything, sorted by member name
// @Tags         billing
// @Produce      json
// @Success      200 {object} APIResponse[[]billing.ArrearsSummary]
// @Router       /billing/arrears [get]
func (h *BillingHandler) ListArrears(c *gin.Context) {
	summaries, err := h.arrears.ArrearsForAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summaries)
}

// ListPendingInvoices godoc
// @ID           listBillingPendingInvoices
// @Summary      List a member's unpaid and partially paid invoices
// @Description  Returns the member's outstanding invoices in allocation order, oldest period first
// @Tags         billing
// @Produce      json
// @Param        id path string true "Member ID"
// @Success      200 {object} APIResponse[[]dto.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/members/{id}/invoices/pending [get]
func (h *BillingHandler) ListPendingInvoices(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid member ID format")
		return
	}

	invoices, err := h.arrears.PendingInvoicesFor(c.Request.Context(), memberID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, dto.NewInvoiceResponse(&invoices[i]))
	}

	h.Success(c, responses)
}

// ListMembers godoc
// @ID           listBillingMembers
// @Summary      List the member directory
// @Description  Returns members with pagination, sorting and an optional name search, for collection screens and member pickers
// @Tags         billing
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort field" default(created_at)
// @Param        search query string false "Filter by name"
// @Success      200 {object} APIResponse[[]dto.MemberResponse]
// @Router       /billing/members [get]
func (h *BillingHandler) ListMembers(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
		Search:   listReq.Search,
	}

	members, total, err := h.arrears.Members(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		responses = append(responses, dto.NewMemberResponse(&members[i]))
	}

	h.SuccessWithMeta(c, responses, total, listReq.Page, listReq.PageSize)
}

// ListInvoices godoc
// @ID           listBillingInvoices
// @Summary      List a member's invoice history
// @Description  Returns all of the member's invoices, paid and open alike, paginated
// @Tags         billing
// @Produce      json
// @Param        id path string true "Member ID"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]dto.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/members/{id}/invoices [get]
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid member ID format")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	invoices, total, err := h.arrears.InvoicesFor(c.Request.Context(), memberID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, dto.NewInvoiceResponse(&invoices[i]))
	}

	h.SuccessWithMeta(c, responses, total, listReq.Page, listReq.PageSize)
}

// ListPayments godoc
// @ID           listBillingPayments
// @Summary      List a member's payment history
// @Description  Returns the member's payment records, newest first, paginated
// @Tags         billing
// @Produce      json
// @Param        id path string true "Member ID"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]dto.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/members/{id}/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid member ID format")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	payments, total, err := h.arrears.PaymentsFor(c.Request.Context(), memberID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		responses = append(responses, dto.NewPaymentResponse(&payments[i]))
	}

	h.SuccessWithMeta(c, responses, total, listReq.Page, listReq.PageSize)
}
