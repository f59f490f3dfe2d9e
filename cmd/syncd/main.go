package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scolarite/mailsync/internal/addressbook"
	"github.com/scolarite/mailsync/internal/config"
	"github.com/scolarite/mailsync/internal/db"
	"github.com/scolarite/mailsync/internal/directory"
	"github.com/scolarite/mailsync/internal/protocol"
	"github.com/scolarite/mailsync/internal/queue"
	"github.com/scolarite/mailsync/internal/scheduler"
	"github.com/scolarite/mailsync/internal/synchronizer"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone %s: %v", cfg.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Printf("Successfully connected to database")

	dirStore := db.NewDirectoryStore(pool)
	modStore := db.NewModificationStore(pool)
	taskStore := db.NewTaskStore(pool)

	client := protocol.NewClient(cfg.RemoteBaseURL, cfg.RemoteAdminAccount, cfg.RemoteAdminPassword)

	loader := directory.NewLoader(dirStore)
	builder := addressbook.NewBuilder(defaultTranslator)
	accountSync := synchronizer.New(client, dirStore, modStore, cfg.MailDomain, cfg.SyncMaxCollisionRetries, cfg.SyncBatchSize)
	unitSyncer := synchronizer.NewUnitSyncer(loader, builder, logPusher{}, dirStore)

	recallWorker := queue.NewWorker(taskStore, queue.NewRecallHandler(client), cfg.QueueMaxSize)
	calendarWorker := queue.NewWorker(taskStore, queue.NewCalendarHandler(client), cfg.QueueMaxSize)
	go recallWorker.Run(ctx)
	go calendarWorker.Run(ctx)
	recallWorker.Start()
	calendarWorker.Start()

	sched := scheduler.New(loc, cfg.SyncCycleTimeout)
	mustRegister(sched, cfg.SyncCron, "account-sync", func(ctx context.Context) error {
		if err := accountSync.ProcessPending(ctx); err != nil {
			return err
		}
		return unitSyncer.SyncAllUnits(ctx)
	})
	mustRegister(sched, cfg.QueueSyncCron, "recall-queue-sync", recallWorker.SyncQueue)
	mustRegister(sched, cfg.QueueSyncCron, "calendar-queue-sync", calendarWorker.SyncQueue)
	sched.Start()

	log.Printf("mailsync daemon started (environment: %s, domain: %s)", cfg.Environment, cfg.MailDomain)

	<-ctx.Done()
	log.Printf("Shutting down")
	sched.Stop()
}

func mustRegister(s *scheduler.Scheduler, spec, name string, job scheduler.Job) {
	if err := s.Register(spec, name, job); err != nil {
		log.Fatalf("Failed to register %s job: %v", name, err)
	}
}

// logPusher stands in for the remote-side address-book synchronizer, which
// applies the generated tree to the remote address book. Until that
// collaborator is wired here, the daemon only reports what it built.
type logPusher struct{}

func (logPusher) Push(_ context.Context, unitID string, root *addressbook.Folder) error {
	folders := 0
	contacts := 0
	var walk func(*addressbook.Folder)
	walk = func(f *addressbook.Folder) {
		folders++
		contacts += f.Len()
		for _, child := range f.Children() {
			walk(child)
		}
	}
	walk(root)
	log.Printf("sync: unit %s address book ready (%d folders, %d contacts)", unitID, folders-1, contacts)
	return nil
}

// defaultTranslator maps profile and folder keys to their display names.
// Translation lookup proper lives outside this service; these are the
// fallback labels.
func defaultTranslator(label string) string {
	switch label {
	case "staff":
		return "Staff"
	case "teacher":
		return "Teachers"
	case "student":
		return "Students"
	case "guardian":
		return "Guardians"
	case "guest":
		return "Guests"
	case "members":
		return "Members"
	default:
		return label
	}
}
