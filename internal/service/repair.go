package service

import (
	"context"
	"log"
	"time"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/monitoring"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

const repairBatchSize = 100

// RepairLoop periodically scans for completed orders that have no
// tickets and issues them. Issuance commits in the same transaction
// as the completed status, so the scan is a safety net for data
// restored or mutated outside the application.
type RepairLoop struct {
	orders *repository.OrderRepo
	issuer *Issuer
}

func NewRepairLoop(orders *repository.OrderRepo, issuer *Issuer) *RepairLoop {
	return &RepairLoop{orders: orders, issuer: issuer}
}

// Run blocks until ctx is cancelled, running one repair pass per
// interval. Errors are logged; the loop never stops on them.
func (l *RepairLoop) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				log.Printf("issuance-repair: pass failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single repair pass and returns the first error
// encountered after attempting every candidate order.
func (l *RepairLoop) RunOnce(ctx context.Context) error {
	ids, err := l.orders.CompletedWithoutTickets(ctx, repairBatchSize)
	if err != nil {
		return err
	}
	var firstErr error
	for _, id := range ids {
		if err := l.repairOrder(ctx, id); err != nil {
			log.Printf("issuance-repair: order %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Printf("issuance-repair: issued missing tickets for order %d", id)
		monitoring.TrackIssuanceRepair()
	}
	return firstErr
}

func (l *RepairLoop) repairOrder(ctx context.Context, orderID uint64) error {
	tx, err := l.orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-check status under the row lock; the scan ran unlocked.
	o, err := l.orders.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o.Status != model.OrderCompleted {
		return nil
	}
	if _, err := l.issuer.IssueForOrderTx(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
