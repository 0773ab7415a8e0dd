package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

// ErrPaymentReference is returned when the callback lacks the gateway
// order or payment id.
var ErrPaymentReference = errors.New("order_id, payment_id and signature are required")

// PaymentVerifier checks that a callback really came from the gateway.
type PaymentVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// HMACVerifier checks hex(HMAC-SHA256(secret, order_id|payment_id)).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway sends for the pair.
func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	want := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// PaymentConfirmation is the gateway callback for one application.
type PaymentConfirmation struct {
	ApplicationID uint64 `json:"application_id"`
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Signature     string `json:"signature"`
	AmountPaise   int64  `json:"amount_paise"`
}

// PaymentView is the fee state of an application.
type PaymentView struct {
	ApplicationID   uint64                `json:"application_id"`
	SelectionStatus model.SelectionStatus `json:"selection_status"`
	Payment         model.Payment         `json:"payment"`
}

// PaymentService records the single "paid" transition.
type PaymentService struct {
	store      repository.Store
	verifier   PaymentVerifier
	events     EventPublisher
	log        *logrus.Entry
	maxRetries int
	now        func() time.Time
}

func NewPaymentService(store repository.Store, verifier PaymentVerifier, events EventPublisher, maxRetries int) *PaymentService {
	if verifier == nil {
		panic("service: NewPaymentService requires a verifier")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &PaymentService{
		store:      store,
		verifier:   verifier,
		events:     events,
		log:        logger.WithService("payment"),
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmPayment marks a selected application as paid. A second callback
// for a paid application succeeds without changing the stored payment.
// A non-positive amount falls back to the first-preference course fee.
func (s *PaymentService) ConfirmPayment(ctx context.Context, in PaymentConfirmation) (*PaymentView, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Signature = strings.TrimSpace(in.Signature)
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, ErrPaymentReference
	}
	if !s.verifier.Verify(in.OrderID, in.PaymentID, in.Signature) {
		s.log.WithField("application_id", in.ApplicationID).Warn("payment signature mismatch")
		return nil, ErrInvalidSignature
	}

	changed := false
	a, err := runTransition(ctx, s.store, s.maxRetries, "confirm_payment", in.ApplicationID,
		func(ctx context.Context, tx repository.Tx, a *model.Application) error {
			changed = false
			if err := checkPayment(a); err != nil {
				return err
			}
			amount := in.AmountPaise
			if amount <= 0 {
				if courseID, ok := a.FirstPreference(); ok {
					if c, err := s.store.GetCourse(ctx, courseID); err == nil {
						amount = c.FeesPaise
					}
				}
			}
			paidAt := s.now()
			p := model.Payment{
				Status:      model.PaymentPaid,
				AmountPaise: &amount,
				PaidAt:      &paidAt,
				OrderID:     &in.OrderID,
				PaymentID:   &in.PaymentID,
				Signature:   &in.Signature,
			}
			if err := tx.SetPayment(ctx, a.ID, p); err != nil {
				return err
			}
			a.Payment = p
			changed = true
			return nil
		})
	if err != nil {
		changed = false
	}

	entry := s.log.WithField("application_id", in.ApplicationID)
	switch {
	case err != nil:
		metrics.RecordTransition("confirm_payment", outcome(err))
		entry.WithError(err).Info("payment refused")
		return nil, err
	case !changed:
		metrics.RecordTransition("confirm_payment", "no_change")
	default:
		metrics.RecordTransition("confirm_payment", "ok")
		entry.WithField("order_id", in.OrderID).Info("payment confirmed")
		emit(ctx, s.events, s.log, queue.AdmissionEvent{
			Type:          queue.EventPaymentConfirmed,
			ApplicationID: a.ID,
			StudentName:   a.StudentName,
			Detail:        in.OrderID,
		})
	}
	return &PaymentView{ApplicationID: a.ID, SelectionStatus: a.SelectionStatus, Payment: a.Payment}, nil
}

func (s *PaymentService) PaymentStatus(ctx context.Context, id uint64) (*PaymentView, error) {
	a, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentView{ApplicationID: a.ID, SelectionStatus: a.SelectionStatus, Payment: a.Payment}, nil
}
