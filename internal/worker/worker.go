// Package worker turns domain events into outbound email jobs.
package worker

import (
	"context"
	"fmt"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// Email templates understood by the email sender
const (
	TemplateOrderPaid         = "order_paid"
	TemplateReconciliation    = "reconciliation_raised"
	TemplatePayoutRequested   = "payout_requested"
	TemplatePayoutProcessed   = "payout_processed"
	TemplateVendorStatusShift = "vendor_status_changed"
)

// NotificationWorker consumes marketplace events and enqueues emails
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	mailer   notify.Mailer
	opsEmail string
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker. Reconciliation
// alerts go to opsEmail.
func NewNotificationWorker(consumer *broker.Consumer, mailer notify.Mailer, opsEmail string) *NotificationWorker {
	logger := util.GetLogger()
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(logger),
		mailer:   mailer,
		opsEmail: opsEmail,
		logger:   logger,
	}

	w.handler.OnOrderPaid(w.orderPaid)
	w.handler.OnReconciliationRaised(w.reconciliationRaised)
	w.handler.OnPayout(w.payout)
	w.handler.OnVendorStatusChanged(w.vendorStatusChanged)
	return w
}

// Start consumes until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop closes the consumer and the mailer
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	err := w.consumer.Close()
	if mErr := w.mailer.Close(); err == nil {
		err = mErr
	}
	return err
}

func (w *NotificationWorker) orderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	if e.BuyerEmail == "" {
		w.logger.Warn("Order paid without buyer email", zap.String("order_id", e.OrderID.String()))
		util.NotificationsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	return w.send(ctx, notify.Email{
		To:       e.BuyerEmail,
		Subject:  "Your order has been confirmed",
		Template: TemplateOrderPaid,
		Data: map[string]string{
			"name":     e.BuyerName,
			"order_id": e.OrderID.String(),
			"total":    e.Total.StringFixed(2),
			"items":    fmt.Sprintf("%d", len(e.Items)),
		},
	})
}

func (w *NotificationWorker) reconciliationRaised(ctx context.Context, e *models.ReconciliationRaisedEvent) error {
	return w.send(ctx, notify.Email{
		To:       w.opsEmail,
		Subject:  "Settlement needs review: " + e.Kind,
		Template: TemplateReconciliation,
		Data: map[string]string{
			"item_id":  e.ItemID.String(),
			"order_id": e.OrderID.String(),
			"kind":     e.Kind,
			"detail":   e.Detail,
		},
	})
}

func (w *NotificationWorker) payout(ctx context.Context, e *models.PayoutEvent) error {
	template, subject := TemplatePayoutProcessed, "Your payout is "+e.Status
	if e.EventType == models.EventTypePayoutRequested {
		template, subject = TemplatePayoutRequested, "We received your payout request"
	}
	return w.send(ctx, notify.Email{
		To:       e.VendorEmail,
		Subject:  subject,
		Template: template,
		Data: map[string]string{
			"store_name": e.StoreName,
			"payout_id":  e.PayoutID.String(),
			"amount":     e.Amount.StringFixed(2),
			"status":     e.Status,
		},
	})
}

func (w *NotificationWorker) vendorStatusChanged(ctx context.Context, e *models.VendorStatusChangedEvent) error {
	return w.send(ctx, notify.Email{
		To:       e.VendorEmail,
		Subject:  "Your store status is now " + e.Status,
		Template: TemplateVendorStatusShift,
		Data: map[string]string{
			"store_name": e.StoreName,
			"vendor_id":  e.VendorID.String(),
			"status":     e.Status,
		},
	})
}

// send enqueues one email. An error leaves the event uncommitted so it is redelivered.
func (w *NotificationWorker) send(ctx context.Context, email notify.Email) error {
	if err := w.mailer.Send(ctx, email); err != nil {
		util.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send %s email: %w", email.Template, err)
	}
	util.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}
