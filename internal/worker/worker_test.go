package worker

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/mail"
	"fintrack/internal/sheets/memory"
)

type failingSheet struct{}

func (failingSheet) AppendEvent(context.Context, core.LedgerEvent) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestSyncWorkerAppendsRow(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(store)
	ev := core.LedgerEvent{
		Action:      core.ActionDelete,
		UserID:      "alice",
		Transaction: core.Transaction{ID: "t1", Kind: core.IncomeKind(), Amount: core.Money{Cents: 100}},
	}

	if err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEventMessage(ev)); err != nil {
		t.Fatalf("HandleLedgerEvent: %v", err)
	}
	rows := store.Rows()
	if len(rows) != 1 || rows[0][1] != "delete" || rows[0][2] != "t1" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestSyncWorkerPropagatesFailure(t *testing.T) {
	w := NewSyncWorker(failingSheet{})
	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEventMessage(core.LedgerEvent{}))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestEmailWorker(t *testing.T) {
	m := &recordingMailer{}
	w := NewEmailWorker(m)
	msg := amqp.NewEmailMessage(mail.Message{To: "a@example.com", Subject: "s"})

	if err := w.HandleEmail(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(m.sent) != 1 || m.sent[0].To != "a@example.com" {
		t.Fatalf("unexpected sent: %v", m.sent)
	}

	m.err = errors.New("smtp down")
	if err := w.HandleEmail(context.Background(), msg); err == nil {
		t.Fatal("expected delivery error")
	}
}
