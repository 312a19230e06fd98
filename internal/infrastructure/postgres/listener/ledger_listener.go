package listener

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/postgres"
)

const (
	channelName       = "ledger_written"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// LedgerNotification is the payload sent by the expenses insert trigger.
type LedgerNotification struct {
	ExpenseID string `json:"expense_id"`
	UserID    string `json:"user_id"`
	Source    string `json:"source"`
}

type ExpenseReader interface {
	GetByID(ctx context.Context, id string) (*expense.Expense, error)
}

type EntryEvaluator interface {
	EvaluateLedgerEntry(ctx context.Context, exp *expense.Expense) []budget.Warning
}

// LedgerListener runs the budget tracker for ledger rows written by other
// services. Rows this service wrote are skipped; their write path has
// already evaluated them.
type LedgerListener struct {
	connStr    string
	expenses   ExpenseReader
	evaluator  EntryEvaluator
	shutdownCh chan struct{}
	done       chan struct{}
	inflight   sync.WaitGroup
}

func NewLedgerListener(connStr string, expenses ExpenseReader, evaluator EntryEvaluator) *LedgerListener {
	return &LedgerListener{
		connStr:    connStr,
		expenses:   expenses,
		evaluator:  evaluator,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *LedgerListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Println("Ledger notification listener started")
}

// Stop waits for in-flight evaluations to finish.
func (l *LedgerListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.inflight.Wait()
	log.Println("Ledger notification listener stopped")
}

func (l *LedgerListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconnecting to PostgreSQL for ledger notifications...")
		}
	}
}

func (l *LedgerListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("Connected to PostgreSQL notification channel")
		case pq.ListenerEventDisconnected:
			log.Printf("Disconnected from PostgreSQL notification channel: %v", err)
		case pq.ListenerEventReconnected:
			log.Println("Reconnected to PostgreSQL notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		log.Printf("Failed to listen on channel %s: %v", channelName, err)
		return
	}
	log.Printf("Listening on channel: %s", channelName)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost
				return
			}
			payload, ok := parseNotification(n.Extra)
			if !ok {
				continue
			}
			l.inflight.Add(1)
			go func() {
				defer l.inflight.Done()
				// parent ctx may be cancelled during shutdown
				l.handle(context.Background(), payload)
			}()
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("Listener ping failed: %v", err)
				}
			}()
		}
	}
}

func parseNotification(extra string) (LedgerNotification, bool) {
	var payload LedgerNotification
	if err := json.Unmarshal([]byte(extra), &payload); err != nil {
		log.Printf("Failed to parse ledger notification payload: %v", err)
		return payload, false
	}
	if payload.ExpenseID == "" {
		log.Printf("Ledger notification without expense id: %s", extra)
		return payload, false
	}
	return payload, true
}

// handle reports whether the tracker ran.
func (l *LedgerListener) handle(ctx context.Context, payload LedgerNotification) bool {
	if payload.Source == postgres.SourceCore {
		return false
	}

	exp, err := l.expenses.GetByID(ctx, payload.ExpenseID)
	if err != nil {
		log.Printf("Failed to load expense %s for user %s: %v", payload.ExpenseID, payload.UserID, err)
		return false
	}

	warnings := l.evaluator.EvaluateLedgerEntry(ctx, exp)
	log.Printf("Evaluated external ledger entry %s for user %s: %d warnings", exp.ID, exp.UserID, len(warnings))
	return true
}
