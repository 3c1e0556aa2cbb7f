// Package notify delivers payment-recorded notifications off the request
// path. Delivery failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/loan"
)

// Message is what a client is told after a repayment is recorded.
type Message struct {
	LoanID         uuid.UUID
	ClientID       uuid.UUID
	InstallmentSeq int
	Amount         decimal.Decimal
	Remaining      decimal.Decimal
	Closed         bool
	Text           string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the default slog logger. It stands in for an
// SMS gateway.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	slog.Info("Payment notification",
		"loan_id", m.LoanID,
		"client_id", m.ClientID,
		"installment", m.InstallmentSeq,
		"text", m.Text,
	)

	return nil
}

var _ loan.Notifier = (*Dispatcher)(nil)

// Dispatcher queues notifications and sends them from a single worker.
// PaymentRecorded never blocks; when the queue is full the message is dropped.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration

	queue chan Message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, buffer int, timeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		queue:   make(chan Message, buffer),
	}

	d.wg.Go(d.run)

	return d
}

func (d *Dispatcher) PaymentRecorded(_ context.Context, l *loan.Loan, p *loan.Payment) {
	m := compose(l, p)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	select {
	case d.queue <- m:
	default:
		slog.Warn("Notification queue full, dropping message", "loan_id", m.LoanID, "installment", m.InstallmentSeq)
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	for m := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)

		if err := d.sender.Send(ctx, m); err != nil {
			slog.Error("Failed to send payment notification", "loan_id", m.LoanID, "error", err)
		}

		cancel()
	}
}

func compose(l *loan.Loan, p *loan.Payment) Message {
	m := Message{
		LoanID:         l.ID,
		ClientID:       l.ClientID,
		InstallmentSeq: p.InstallmentSeq,
		Amount:         p.Amount,
		Remaining:      l.RemainingAmount,
		Closed:         l.Status == loan.StatusClosed,
	}

	m.Text = fmt.Sprintf("Payment of %s received for installment %d. Outstanding principal: %s.",
		p.Amount.StringFixed(2), p.InstallmentSeq, l.RemainingAmount.StringFixed(2))

	if m.Closed {
		m.Text += " Your loan is now fully repaid."
	}

	return m
}
