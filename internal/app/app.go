// Package app assembles the store backend and domain services shared by the
// API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log"

	fb "firebase.google.com/go/v4"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/firebase"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/firestore"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/kafka"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/memory"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/postgres"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/postgres/listener"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/messages"
)

// LedgerStore is everything the services need from the expense ledger.
type LedgerStore interface {
	expense.Repository
	recurring.Ledger
	budget.SpendingReader
}

// Storage is the repository set of whichever backend is configured.
type Storage struct {
	Recurring     recurring.Repository
	Expenses      LedgerStore
	Budget        budget.Repository
	Notifications notification.Repository
	close         func() error
}

// Options toggles the long-running parts a short-lived process does not want.
type Options struct {
	// LedgerListener builds the postgres LISTEN consumer when the config asks for it.
	LedgerListener bool
}

type App struct {
	Config     *config.Config
	Firebase   *fb.App
	Store      *Storage
	Categories *expense.CategorySet

	Recurring     *recurring.Service
	Expenses      *expense.Service
	Tracker       *budget.Tracker
	Notifications *notification.Service
	Evaluation    *evaluation.Service

	listener  *listener.LedgerListener
	listening bool
	events    *kafka.Publisher
}

// New connects the configured backend and wires the domain services.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Firebase.Enabled() {
		fbApp, err := firebase.NewApp(ctx, firebase.Config{
			CredentialsFile: cfg.Firebase.CredentialsFile,
			ProjectID:       cfg.Firebase.ProjectID,
		})
		if err != nil {
			return nil, err
		}
		a.Firebase = fbApp
	}

	store, err := openStorage(ctx, cfg, a.Firebase)
	if err != nil {
		return nil, err
	}
	a.Store = store

	categoryKeys := cfg.Budget.Categories
	if len(categoryKeys) == 0 {
		categoryKeys = expense.DefaultCategories
	}
	a.Categories, err = expense.NewCategorySet(categoryKeys)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid CATEGORIES: %w", err)
	}

	msgs, err := messages.Load(cfg.Messages.File)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Push delivery is optional; without Firebase notifications are only stored.
	var messenger notification.Messenger
	if a.Firebase != nil {
		client, err := firebase.NewClient(ctx, a.Firebase, store.Notifications.DeactivateToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		messenger = client
	} else {
		log.Println("Firebase not configured, push notifications disabled")
	}

	a.Recurring = recurring.NewService(store.Recurring, store.Expenses)
	a.Expenses = expense.NewService(store.Expenses, a.Categories)
	a.Tracker = budget.NewTracker(store.Budget, store.Expenses)
	a.Notifications = notification.NewService(store.Notifications, messenger)

	a.Evaluation = evaluation.NewService(a.Recurring, a.Expenses, a.Tracker)
	a.Evaluation.SetNotifier(evaluation.NewPushNotifier(a.Notifications, msgs))

	if cfg.Kafka.Enabled() {
		a.events = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Evaluation.SetEventPublisher(a.events)
		log.Printf("Publishing budget events to kafka topic %s", cfg.Kafka.Topic)
	}

	if opts.LedgerListener && cfg.Store.Backend == config.StorePostgres && cfg.Database.ListenLedger {
		a.listener = listener.NewLedgerListener(cfg.Database.ConnectionString(), store.Expenses, a.Evaluation)
	}

	return a, nil
}

// openStorage connects the configured backend and applies its schema.
func openStorage(ctx context.Context, cfg *config.Config, fbApp *fb.App) (*Storage, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolConfig{})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("Connected to database")
		return &Storage{
			Recurring:     postgres.NewRecurringRepository(db),
			Expenses:      postgres.NewExpenseRepository(db),
			Budget:        postgres.NewBudgetRepository(db),
			Notifications: postgres.NewNotificationRepository(db),
			close:         db.Close,
		}, nil

	case config.StoreFirestore:
		client, err := firebase.NewFirestore(ctx, fbApp)
		if err != nil {
			return nil, err
		}
		s := firestore.NewStore(client)
		log.Println("Connected to firestore")
		return &Storage{
			Recurring:     s.Recurring,
			Expenses:      s.Expenses,
			Budget:        s.Budget,
			Notifications: s.Notifications,
			close:         s.Close,
		}, nil

	default:
		log.Println("Using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &Storage{
			Recurring:     s.Recurring,
			Expenses:      s.Expenses,
			Budget:        s.Budget,
			Notifications: s.Notifications,
			close:         func() error { return nil },
		}, nil
	}
}

// StartBackground starts the ledger listener when one was built.
func (a *App) StartBackground(ctx context.Context) {
	if a.listener != nil {
		a.listener.Start(ctx)
		a.listening = true
	}
}

// Close releases all resources held by the app.
func (a *App) Close() {
	if a.listening {
		a.listener.Stop()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			log.Printf("Error closing kafka publisher: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}
}
