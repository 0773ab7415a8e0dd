package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/service"
)

// PaymentHandler receives the payment gateway callback.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(p *service.PaymentService) *PaymentHandler {
	if p == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p}
}

type paymentReq struct {
	ApplicationID uint64 `json:"application_id"`
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Signature     string `json:"signature"`
	AmountPaise   int64  `json:"amount_paise"`
}

// Confirm handles POST /v1/payments/confirm.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req paymentReq
	if err := c.Bind(&req); err != nil || req.ApplicationID == 0 {
		return badRequest(c, "application_id is required")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	v, err := h.Payments.ConfirmPayment(ctx, service.PaymentConfirmation{
		ApplicationID: req.ApplicationID,
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		Signature:     req.Signature,
		AmountPaise:   req.AmountPaise,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Status handles GET /v1/payments/:id.
func (h *PaymentHandler) Status(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	v, err := h.Payments.PaymentStatus(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
