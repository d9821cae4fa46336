package queue

import (
	"context"
	"errors"
	"testing"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
	"genbroker/internal/queue/queuetest"
)

func TestSubmitBlockedUserCreatesNoJob(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	if err := env.blocks.Upsert(ctx, "alice", "abuse"); err != nil {
		t.Fatal(err)
	}

	_, err := env.svc.Submit(ctx, Submitter{UserID: "alice"}, validSubmitRequest())
	if !errors.Is(err, domain.ErrBlocked) {
		t.Fatalf("want ErrBlocked, got %v", err)
	}
	jobs, _ := env.jobs.ListByStatus(ctx, append(domain.NonTerminalStatuses, domain.JobStatusCompleted, domain.JobStatusCancelled))
	if len(jobs) != 0 {
		t.Errorf("no job should be created, found %d", len(jobs))
	}
}

func TestSubmitPausedQueue(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	if err := env.queue.SetPaused(ctx, true); err != nil {
		t.Fatal(err)
	}

	_, err := env.svc.Submit(ctx, Submitter{UserID: "alice"}, validSubmitRequest())
	if !errors.Is(err, domain.ErrQueueUnavailable) {
		t.Fatalf("want ErrQueueUnavailable, got %v", err)
	}
}

func TestSubmitUnknownModel(t *testing.T) {
	env := newTestEnv()
	req := validSubmitRequest()
	req.BaseModels = []domain.ModelSelection{{ID: "ghost", Source: domain.ModelSourceCatalog}}

	_, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSubmitPrivateModelForbidden(t *testing.T) {
	env := newTestEnv()
	env.catalog.BaseModels["m1"] = domain.CatalogModel{
		ID: "m1", Name: "Private", OwnerID: "bob", StorageLocation: "models/m1",
	}
	req := validSubmitRequest()
	req.BaseModels = []domain.ModelSelection{{ID: "m1", Source: domain.ModelSourceCatalog}}

	if _, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, req); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}

	// Admins may use any model.
	if _, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice", Admin: true}, req); err != nil {
		t.Fatalf("admin submit failed: %v", err)
	}
}

func TestSubmitLoRAFailureAbortsWhole(t *testing.T) {
	env := newTestEnv()
	req := validSubmitRequest()
	req.LoRAs = []domain.LoRASelection{
		{ID: "builtin-lora", Source: domain.ModelSourceConfigured, Strength: 0.8},
		{ID: "missing", Source: domain.ModelSourceCatalog, Strength: 0.5},
	}

	_, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	jobs, _ := env.jobs.ListByStatus(context.Background(), domain.NonTerminalStatuses)
	if len(jobs) != 0 {
		t.Errorf("partial application not allowed, found %d jobs", len(jobs))
	}
}

func TestSubmitPrimaryModelNeedsStorageLocation(t *testing.T) {
	env := newTestEnv()
	env.catalog.BaseModels["m1"] = domain.CatalogModel{ID: "m1", Name: "NoStorage", OwnerID: "alice"}
	req := validSubmitRequest()
	req.BaseModels = []domain.ModelSelection{{ID: "m1", Source: domain.ModelSourceCatalog}}

	if _, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestSubmitDispatchOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     dispatch.Result
		err        error
		wantStatus domain.JobStatus
		wantReason bool
	}{
		{"queued", dispatch.Result{Outcome: dispatch.OutcomeQueued}, nil, domain.JobStatusQueued, false},
		{"busy stays pending", dispatch.Result{Outcome: dispatch.OutcomeBusy, Message: "all agents busy"}, nil, domain.JobStatusPending, false},
		{"rejected", dispatch.Result{Outcome: dispatch.OutcomeError, Message: "bad model"}, nil, domain.JobStatusError, true},
		{"network fault", dispatch.Result{}, errors.New("connection refused"), domain.JobStatusError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.agent.Default = tt.result
			if tt.err != nil {
				env.agent.Script = []func(job *domain.GenerationJob) (dispatch.Result, error){
					func(job *domain.GenerationJob) (dispatch.Result, error) { return dispatch.Result{}, tt.err },
				}
			}

			job, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, validSubmitRequest())
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
			stored, err := env.jobs.GetByID(context.Background(), job.ID)
			if err != nil {
				t.Fatal(err)
			}
			if stored.Status != tt.wantStatus {
				t.Errorf("status: got %s, want %s", stored.Status, tt.wantStatus)
			}
			if tt.wantReason && stored.ErrorReason == "" {
				t.Error("want an error reason recorded")
			}
			if !tt.wantReason && stored.ErrorReason != "" {
				t.Errorf("unexpected error reason %q", stored.ErrorReason)
			}
		})
	}
}

func TestSubmitHeldWhenPausedDuringResolution(t *testing.T) {
	env := newTestEnv()
	shim := &scriptedQueue{inner: env.queue}
	env.svc.queue = shim

	job, err := env.svc.Submit(context.Background(), Submitter{UserID: "alice"}, validSubmitRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if job.Status != domain.JobStatusHeld {
		t.Errorf("status: got %s, want held", job.Status)
	}
	if len(env.agent.Calls) != 0 {
		t.Error("held job must not be dispatched")
	}
}

// scriptedQueue reports the queue as paused from the second read on.
type scriptedQueue struct {
	inner *queuetest.QueueStore
	reads int
}

func (q *scriptedQueue) Get(ctx context.Context) (*domain.QueueState, error) {
	q.reads++
	state, err := q.inner.Get(ctx)
	if err != nil {
		return nil, err
	}
	if q.reads > 1 {
		state.IsPaused = true
	}
	return state, nil
}

func (q *scriptedQueue) SetPaused(ctx context.Context, paused bool) error {
	return q.inner.SetPaused(ctx, paused)
}

func (q *scriptedQueue) SetActivity(ctx context.Context, snapshot []byte) error {
	return q.inner.SetActivity(ctx, snapshot)
}
