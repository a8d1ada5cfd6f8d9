// Package printer spools KOT tickets, bills and cancellation slips to an
// async dispatcher. Print failures never affect the transaction that
// produced the job; they are logged and the job stays queryable in the
// print_jobs table for reprints.
package printer

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinemate-pos/api/internal/database"
)

// Queue accepts print jobs after their transaction commits.
type Queue interface {
	Enqueue(job Job)
}

// Job is one document headed for a printer.
type Job struct {
	OutletID  uuid.UUID
	Type      database.PrintJobType
	StationID uuid.UUID
	Payload   any
}

type jobStore interface {
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
}

// Spooler persists jobs and hands them to worker goroutines. The channel
// is buffered; if it fills, Enqueue drops the job with a log line rather
// than block the caller.
type Spooler struct {
	store   jobStore
	jobs    chan Job
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewSpooler(store jobStore, workers int) *Spooler {
	if workers < 1 {
		workers = 1
	}
	s := &Spooler{
		store:   store,
		jobs:    make(chan Job, 128),
		timeout: 5 * time.Second,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Spooler) Enqueue(job Job) {
	select {
	case s.jobs <- job:
	default:
		log.Printf("ERROR: print queue full, dropping %s job for outlet %s", job.Type, job.OutletID)
	}
}

// Close stops accepting jobs and waits for in-flight ones to finish.
func (s *Spooler) Close() {
	close(s.jobs)
	s.wg.Wait()
}

func (s *Spooler) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.process(job)
	}
}

func (s *Spooler) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		log.Printf("ERROR: marshal %s print payload: %v", job.Type, err)
		return
	}

	var stationID pgtype.UUID
	if job.StationID != uuid.Nil {
		stationID = pgtype.UUID{Bytes: job.StationID, Valid: true}
	}

	if _, err := s.store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		OutletID:  job.OutletID,
		JobType:   job.Type,
		StationID: stationID,
		Payload:   payload,
	}); err != nil {
		log.Printf("ERROR: persist %s print job for outlet %s: %v", job.Type, job.OutletID, err)
	}
}
