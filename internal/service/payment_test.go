package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
)

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("gateway-secret")
	sig := v.Sign("order_9A", "pay_7B")

	assert.Len(t, sig, 64)
	assert.True(t, v.Verify("order_9A", "pay_7B", sig))
	assert.True(t, v.Verify("order_9A", "pay_7B", strings.ToUpper(sig)))
	assert.False(t, v.Verify("order_9A", "pay_7C", sig))
	assert.False(t, NewHMACVerifier("").Verify("order_9A", "pay_7B", sig))
}

func newPaymentHarness() (*harness, *PaymentService, *HMACVerifier) {
	h := newHarness()
	v := NewHMACVerifier("gateway-secret")
	return h, NewPaymentService(h.store, v, h.events, DefaultMaxRetries), v
}

func TestConfirmPayment(t *testing.T) {
	h, svc, v := newPaymentHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 10)
	app := paidApp(8, 1)
	app.Payment = model.Payment{Status: model.PaymentNone}
	h.store.addApp(app)

	in := PaymentConfirmation{ApplicationID: 8, OrderID: "order_1", PaymentID: "pay_1", Signature: v.Sign("order_1", "pay_1")}
	view, err := svc.ConfirmPayment(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, view.Payment.Status)
	require.NotNil(t, view.Payment.AmountPaise)
	assert.Equal(t, int64(5000000), *view.Payment.AmountPaise)

	stored := h.store.app(8)
	assert.Equal(t, model.StagePaymentDone, stored.Stage())
	assert.Equal(t, "order_1", *stored.Payment.OrderID)
	assert.Equal(t, []queue.EventType{queue.EventPaymentConfirmed}, h.events.types())

	// a replayed callback changes nothing
	in2 := PaymentConfirmation{ApplicationID: 8, OrderID: "order_2", PaymentID: "pay_2", Signature: v.Sign("order_2", "pay_2"), AmountPaise: 100}
	view, err = svc.ConfirmPayment(context.Background(), in2)
	require.NoError(t, err)
	assert.Equal(t, "order_1", *view.Payment.OrderID)
	assert.Equal(t, "order_1", *h.store.app(8).Payment.OrderID)
	assert.Len(t, h.events.types(), 1)
}

func TestConfirmPaymentRejections(t *testing.T) {
	h, svc, v := newPaymentHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 10)
	h.store.ready(9, 1)
	ctx := context.Background()

	_, err := svc.ConfirmPayment(ctx, PaymentConfirmation{ApplicationID: 9, OrderID: "o", PaymentID: "p", Signature: "deadbeef"})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = svc.ConfirmPayment(ctx, PaymentConfirmation{ApplicationID: 9, OrderID: "o"})
	assert.ErrorIs(t, err, ErrPaymentReference)

	_, err = svc.ConfirmPayment(ctx, PaymentConfirmation{ApplicationID: 9, OrderID: "o", PaymentID: "p", Signature: v.Sign("o", "p")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.PaymentNone, h.store.app(9).Payment.Status)

	_, err = svc.ConfirmPayment(ctx, PaymentConfirmation{ApplicationID: 404, OrderID: "o", PaymentID: "p", Signature: v.Sign("o", "p")})
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestPaymentStatus(t *testing.T) {
	h, svc, _ := newPaymentHarness()
	h.store.addApp(paidApp(3, 1))

	view, err := svc.PaymentStatus(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.SelectionSelected, view.SelectionStatus)
	assert.Equal(t, model.PaymentPaid, view.Payment.Status)
}
