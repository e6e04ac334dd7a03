package services

import (
	"context"
	"fmt"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dueSoonWindow = 72 * time.Hour
	jobTimeout    = 5 * time.Minute
)

// Scheduler runs the periodic housekeeping jobs: overdue invoices,
// budget expiry, due-soon reminders and the purge of deleted processes.
type Scheduler struct {
	cron             *cron.Cron
	logger           *logrus.Logger
	invoices         *InvoiceService
	supplierInvoices *SupplierInvoiceService
	budgets          *BudgetService
	processes        *ProcessService
	notes            *NotificationService
}

func NewScheduler(invoices *InvoiceService, supplierInvoices *SupplierInvoiceService, budgets *BudgetService, processes *ProcessService, notes *NotificationService) *Scheduler {
	logger := config.GetLogger()
	return &Scheduler{
		cron:             cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(logger)))),
		logger:           logger,
		invoices:         invoices,
		supplierInvoices: supplierInvoices,
		budgets:          budgets,
		processes:        processes,
		notes:            notes,
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		fn   func(context.Context) (int, error)
	}{
		{"0 * * * *", "overdue-invoices", s.invoices.MarkOverdue},
		{"5 * * * *", "overdue-supplier-invoices", s.markSupplierOverdue},
		{"0 6 * * *", "expire-budgets", s.budgets.ExpireOverdue},
		// every day at 9 AM
		{"0 9 * * *", "due-soon", s.NotifyDueSoon},
		{"*/5 * * * *", "purge-processes", s.processes.Purge},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.fn)); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) wrap(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		n, err := fn(WithActor(ctx, SystemActor))
		if err != nil {
			config.LogError(s.logger, "scheduler", name, "job failed", n, err)
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"affected": n,
			"elapsed":  time.Since(start).String(),
		}).Info("Scheduled job finished")
	}
}

func (s *Scheduler) markSupplierOverdue(ctx context.Context) (int, error) {
	n, err := s.supplierInvoices.MarkOverdue(ctx)
	return int(n), err
}

// NotifyDueSoon raises one reminder per open process due in the next
// three days, skipping processes already reminded in the last day.
func (s *Scheduler) NotifyDueSoon(ctx context.Context) (int, error) {
	ps, err := s.processes.DueSoon(ctx, dueSoonWindow)
	if err != nil {
		return 0, err
	}
	since := timeNow().Add(-24 * time.Hour)
	sent := 0
	for _, p := range ps {
		var recent int64
		err := s.notes.db.WithContext(ctx).Model(&models.Notification{}).
			Where("kind = ? AND process_id = ? AND created_at >= ?", models.NotifyProcessDueSoon, p.ID, since).
			Count(&recent).Error
		if err != nil {
			return sent, dbErr("count reminders", err)
		}
		if recent > 0 {
			continue
		}
		priority := models.NotificationMedium
		if p.Priority == models.PriorityHigh || p.Priority == models.PriorityUrgent {
			priority = models.NotificationHigh
		}
		id := p.ID
		_, err = s.notes.Notify(ctx, models.Notification{
			Kind:      models.NotifyProcessDueSoon,
			Module:    "procesos",
			Title:     "Proceso próximo a vencer",
			Message:   fmt.Sprintf("%s vence el %s", p.Title, p.DueDate.Format(reportDateLayout)),
			Priority:  priority,
			ProcessID: &id,
			ClientID:  &p.ClientID,
		})
		if err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
