// Package service holds the payment reconciliation and ticket
// issuance logic that sits between the HTTP handlers and the
// repositories.
package service

import (
	"context"
	"database/sql"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
	"github.com/ticketprozw/ticketpro-backend/internal/utils"
)

// Issuer mints tickets for completed orders. Issuance always runs in
// the same transaction that marked the order completed, so either
// both commit or neither does.
type Issuer struct {
	orders  *repository.OrderRepo
	tickets *repository.TicketRepo
}

func NewIssuer(orders *repository.OrderRepo, tickets *repository.TicketRepo) *Issuer {
	return &Issuer{orders: orders, tickets: tickets}
}

// IssueForOrderTx creates one ticket per purchased unit, each with a
// fresh random credential. If the order already has tickets the call
// is a no-op and returns them as a count of zero new rows, which
// makes re-delivered success webhooks and the repair pass safe.
func (s *Issuer) IssueForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.Ticket, error) {
	existing, err := s.tickets.CountByOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, s.orders.MarkTicketsIssuedTx(ctx, tx, orderID)
	}
	items, err := s.orders.ItemsTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	var tickets []model.Ticket
	for _, it := range items {
		for i := int64(0); i < it.Quantity; i++ {
			cred, err := utils.NewTicketCredential()
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, model.Ticket{
				OrderID:      orderID,
				TicketTypeID: it.TicketTypeID,
				Credential:   cred,
				State:        model.TicketIssued,
			})
		}
	}
	if err := s.tickets.IssueBulkTx(ctx, tx, tickets); err != nil {
		return nil, err
	}
	if err := s.orders.MarkTicketsIssuedTx(ctx, tx, orderID); err != nil {
		return nil, err
	}
	return tickets, nil
}
