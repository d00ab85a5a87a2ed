package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/monitoring"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/email"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/payment"
	"github.com/ticketprozw/ticketpro-backend/internal/queue"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// Outcomes of a webhook delivery. All of them are acknowledged with
// 200; only a processing error makes the handler ask the provider to
// retry.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeUnknown   = "unknown"
	OutcomeIgnored   = "ignored"
)

// Reconciler applies verified provider webhook events to orders,
// payments, inventory and tickets. Every event is processed in one
// database transaction with the payment row locked by provider
// reference, so redelivered and out-of-order webhooks serialize and
// resolve against the current state instead of racing.
type Reconciler struct {
	orders      *repository.OrderRepo
	payments    *repository.PaymentRepo
	ticketTypes *repository.TicketTypeRepo
	users       *repository.UserRepo
	events      *repository.EventRepo
	issuer      *Issuer
	guard       *IdempotencyGuard
	mailer      *email.Client
}

func NewReconciler(
	orders *repository.OrderRepo,
	payments *repository.PaymentRepo,
	ticketTypes *repository.TicketTypeRepo,
	users *repository.UserRepo,
	events *repository.EventRepo,
	issuer *Issuer,
	guard *IdempotencyGuard,
	mailer *email.Client,
) *Reconciler {
	return &Reconciler{
		orders:      orders,
		payments:    payments,
		ticketTypes: ticketTypes,
		users:       users,
		events:      events,
		issuer:      issuer,
		guard:       guard,
		mailer:      mailer,
	}
}

// HandleEvent processes one verified webhook event and returns the
// outcome. A non-nil error means the event was not applied and the
// provider should redeliver; every other path acknowledges.
func (s *Reconciler) HandleEvent(ctx context.Context, ev *payment.Event) (string, error) {
	if !s.guard.MarkSeen(ctx, ev.EventID) {
		monitoring.TrackWebhook(ev.Type, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	outcome, err := s.applyEvent(ctx, ev)
	if err != nil {
		// Free the fast-path slot so the provider's retry is not
		// answered as a duplicate of a delivery that never applied.
		s.guard.Forget(ctx, ev.EventID)
		monitoring.TrackWebhook(ev.Type, "error")
		return "", err
	}
	monitoring.TrackWebhook(ev.Type, outcome)
	return outcome, nil
}

func (s *Reconciler) applyEvent(ctx context.Context, ev *payment.Event) (string, error) {
	tx, err := s.orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.payments.RecordWebhookEvent(ctx, tx, ev.EventID, ev.Type); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	p, err := s.payments.GetByProviderRefTx(ctx, tx, ev.Data.IntentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			// An intent we never created. Acknowledge so the provider
			// stops retrying; the commit keeps the dedup row.
			if err := tx.Commit(); err != nil {
				return "", err
			}
			committed = true
			return OutcomeUnknown, nil
		}
		return "", err
	}

	o, err := s.orders.GetForUpdateTx(ctx, tx, p.OrderID)
	if err != nil {
		return "", err
	}

	var (
		outcome      = OutcomeProcessed
		issued       []model.Ticket
		notifyTarget *model.Order
	)

	switch ev.Type {
	case payment.EventPaymentSucceeded:
		if p.Status.Terminal() {
			outcome = OutcomeDuplicate
			break
		}
		if o.Status.Terminal() {
			// The order finished locally (an explicit cancel, usually)
			// before the provider's outcome arrived. Log and
			// acknowledge; returning an error would have the provider
			// redeliver an event that can never apply.
			log.Printf("reconciler: %s for order %d already in %s; ignoring", ev.Type, o.ID, o.Status)
			outcome = OutcomeIgnored
			break
		}
		if err := s.payments.UpdateStatusTx(ctx, tx, p.ID, model.PaymentSucceeded,
			ev.Data.CustomerID, ev.Data.ChargeID, ""); err != nil {
			return "", err
		}
		// Orders normally sit in processing by the time the provider
		// calls back; a success racing the intent response can still
		// find it pending.
		if o.Status == model.OrderPending {
			if err := s.orders.UpdateStatusTx(ctx, tx, o.ID, model.OrderPending, model.OrderProcessing); err != nil {
				return "", err
			}
			o.Status = model.OrderProcessing
		}
		if err := s.orders.UpdateStatusTx(ctx, tx, o.ID, o.Status, model.OrderCompleted); err != nil {
			return "", err
		}
		if issued, err = s.issuer.IssueForOrderTx(ctx, tx, o.ID); err != nil {
			return "", err
		}
		notifyTarget = o

	case payment.EventPaymentFailed, payment.EventPaymentCancelled:
		if p.Status.Terminal() {
			outcome = OutcomeDuplicate
			break
		}
		if o.Status.Terminal() {
			log.Printf("reconciler: %s for order %d already in %s; ignoring", ev.Type, o.ID, o.Status)
			outcome = OutcomeIgnored
			break
		}
		pStatus, oStatus := model.PaymentFailed, model.OrderFailed
		if ev.Type == payment.EventPaymentCancelled {
			pStatus, oStatus = model.PaymentCancelled, model.OrderCancelled
		}
		if err := s.payments.UpdateStatusTx(ctx, tx, p.ID, pStatus, "", "", ev.Data.FailureMessage); err != nil {
			return "", err
		}
		if err := s.orders.UpdateStatusTx(ctx, tx, o.ID, o.Status, oStatus); err != nil {
			return "", err
		}
		items, err := s.orders.ItemsTx(ctx, tx, o.ID)
		if err != nil {
			return "", err
		}
		if err := s.ticketTypes.ReleaseTx(ctx, tx, o.ID, toLines(items)); err != nil {
			return "", err
		}

	case payment.EventRefundSucceeded:
		if p.Status == model.PaymentRefunded {
			outcome = OutcomeDuplicate
			break
		}
		if err := s.payments.SetRefundTx(ctx, tx, p.ID, ev.Data.RefundID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				outcome = OutcomeIgnored
				break
			}
			return "", err
		}
		if err := s.orders.UpdateStatusTx(ctx, tx, o.ID, o.Status, model.OrderRefunded); err != nil {
			return "", err
		}
		// Refunds do not return units to the ledger. The tickets were
		// sold and their capacity stays consumed.

	default:
		outcome = OutcomeIgnored
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true

	if outcome == OutcomeProcessed && notifyTarget != nil {
		monitoring.TrackOrderFinalized(string(model.OrderCompleted))
		monitoring.TrackTicketsIssued(len(issued))
		s.notifyCompleted(ctx, notifyTarget, issued)
	} else if outcome == OutcomeProcessed {
		monitoring.TrackOrderFinalized(string(orderOutcome(ev.Type)))
		if ev.Type == payment.EventRefundSucceeded {
			s.notifyRefunded(ctx, o)
		}
	}
	return outcome, nil
}

func orderOutcome(eventType string) model.OrderStatus {
	switch eventType {
	case payment.EventPaymentCancelled:
		return model.OrderCancelled
	case payment.EventRefundSucceeded:
		return model.OrderRefunded
	default:
		return model.OrderFailed
	}
}

func toLines(items []model.OrderItem) []repository.ReservationLine {
	lines := make([]repository.ReservationLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, repository.ReservationLine{
			TicketTypeID: it.TicketTypeID,
			Quantity:     it.Quantity,
		})
	}
	return lines
}

// notifyRefunded mails the customer that their money is on the way
// back. The refund is already committed; failures are logged and
// dropped.
func (s *Reconciler) notifyRefunded(ctx context.Context, o *model.Order) {
	if s.mailer == nil {
		return
	}
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		log.Printf("reconciler: load user %d for refund notice: %v", o.UserID, err)
		return
	}
	if err := s.mailer.Send(ctx, email.Message{
		To:       u.Email,
		Subject:  fmt.Sprintf("Refund issued for order %s", o.Reference),
		Template: email.TemplateRefundNotice,
		Data: map[string]interface{}{
			"full_name":   u.FullName(),
			"reference":   o.Reference,
			"total_cents": o.TotalCents,
			"currency":    o.Currency,
		},
	}); err != nil {
		log.Printf("reconciler: refund notice for order %d: %v", o.ID, err)
	}
}

// notifyCompleted publishes the completion event for the mail
// consumer. The order is already committed; failures here are logged
// and dropped.
func (s *Reconciler) notifyCompleted(ctx context.Context, o *model.Order, tickets []model.Ticket) {
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		log.Printf("reconciler: load user %d for notification: %v", o.UserID, err)
		return
	}
	e, err := s.events.GetByID(ctx, o.EventID)
	if err != nil {
		log.Printf("reconciler: load event %d for notification: %v", o.EventID, err)
		return
	}

	typeNames := map[uint64]string{}
	infos := make([]queue.TicketInfo, 0, len(tickets))
	for _, t := range tickets {
		name, ok := typeNames[t.TicketTypeID]
		if !ok {
			tt, err := s.ticketTypes.GetByID(ctx, t.TicketTypeID)
			if err != nil {
				log.Printf("reconciler: load ticket type %d for notification: %v", t.TicketTypeID, err)
				continue
			}
			name = tt.Name
			typeNames[t.TicketTypeID] = name
		}
		infos = append(infos, queue.TicketInfo{TicketTypeName: name, Credential: t.Credential})
	}

	_ = queue.PublishOrderCompleted(ctx, queue.OrderCompletedEvent{
		OrderID:     o.ID,
		Reference:   o.Reference,
		UserID:      u.ID,
		Email:       u.Email,
		FullName:    u.FullName(),
		EventName:   e.Name,
		Venue:       e.Venue,
		StartsAt:    e.StartsAt.UTC().Format(time.RFC3339),
		Tickets:     infos,
		TotalCents:  o.TotalCents,
		Currency:    o.Currency,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
