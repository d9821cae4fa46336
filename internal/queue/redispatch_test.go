package queue

import (
	"context"
	"errors"
	"testing"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
)

func TestRedispatchSweepsOldestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("old", "alice", domain.JobStatusError)
	env.seedJob("mid", "bob", domain.JobStatusHeld)
	env.seedJob("new", "alice", domain.JobStatusPending)
	env.seedJob("running", "bob", domain.JobStatusRunning)

	summary, err := env.svc.Redispatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Attempted != 3 || summary.Queued != 3 || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v", summary)
	}
	want := []string{"old", "mid", "new"}
	if len(env.agent.Calls) != len(want) {
		t.Fatalf("agent calls = %v", env.agent.Calls)
	}
	for i, id := range want {
		if env.agent.Calls[i] != id {
			t.Errorf("call %d = %s, want %s", i, env.agent.Calls[i], id)
		}
	}
	running, _ := env.jobs.GetByID(ctx, "running")
	if running.Status != domain.JobStatusRunning {
		t.Error("running job is not a redispatch candidate")
	}
}

func TestRedispatchOneFailureDoesNotAbortRest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("a", "alice", domain.JobStatusError)
	env.seedJob("b", "alice", domain.JobStatusError)
	env.seedJob("c", "alice", domain.JobStatusError)

	env.agent.Script = []func(job *domain.GenerationJob) (dispatch.Result, error){
		func(job *domain.GenerationJob) (dispatch.Result, error) {
			return dispatch.Result{Outcome: dispatch.OutcomeQueued}, nil
		},
		func(job *domain.GenerationJob) (dispatch.Result, error) {
			return dispatch.Result{}, errors.New("connection refused")
		},
		func(job *domain.GenerationJob) (dispatch.Result, error) {
			return dispatch.Result{Outcome: dispatch.OutcomeQueued}, nil
		},
	}

	summary, err := env.svc.Redispatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Attempted != 3 {
		t.Errorf("attempted = %d, want 3", summary.Attempted)
	}
	if summary.Queued != 2 {
		t.Errorf("queued = %d, want 2", summary.Queued)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].JobID != "b" {
		t.Errorf("errors = %+v", summary.Errors)
	}

	for id, want := range map[string]domain.JobStatus{
		"a": domain.JobStatusQueued,
		"b": domain.JobStatusError,
		"c": domain.JobStatusQueued,
	} {
		job, _ := env.jobs.GetByID(ctx, id)
		if job.Status != want {
			t.Errorf("%s: got %s, want %s", id, job.Status, want)
		}
	}
}

func TestRedispatchBusyLeavesPending(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("a", "alice", domain.JobStatusError)
	env.agent.Default = dispatch.Result{Outcome: dispatch.OutcomeBusy, Message: "all workers busy"}

	summary, err := env.svc.Redispatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Busy != 1 || summary.Queued != 0 {
		t.Errorf("summary = %+v", summary)
	}
	job, _ := env.jobs.GetByID(ctx, "a")
	if job.Status != domain.JobStatusPending {
		t.Errorf("got %s, want pending", job.Status)
	}
	if job.ErrorReason != "" {
		t.Error("claiming a candidate must clear its error reason")
	}
}

func TestRedispatchSkippedWhilePaused(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("a", "alice", domain.JobStatusPending)
	if err := env.queue.SetPaused(ctx, true); err != nil {
		t.Fatal(err)
	}

	summary, err := env.svc.Redispatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Skipped || summary.Attempted != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.agent.Calls) != 0 {
		t.Error("no dispatch while paused")
	}
}

func TestRedispatchEmitsClaimAndOutcomeEvents(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("a", "alice", domain.JobStatusError)

	if _, err := env.svc.Redispatch(ctx); err != nil {
		t.Fatal(err)
	}
	if len(env.emitted.events) != 2 {
		t.Fatalf("emitted %d events, want claim + dispatch outcome", len(env.emitted.events))
	}
	if env.emitted.events[0].Status != domain.JobStatusPending {
		t.Errorf("first event = %s, want pending", env.emitted.events[0].Status)
	}
	if env.emitted.events[1].Status != domain.JobStatusQueued {
		t.Errorf("second event = %s, want queued", env.emitted.events[1].Status)
	}
}

func TestRedispatchDropsStaleArtifacts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedJob("a", "alice", domain.JobStatusError)
	env.artifacts.Seed("a", domain.Artifact{ID: "art-1", JobID: "a", Bucket: "outputs", Key: "stale.png"})

	if _, err := env.svc.Redispatch(ctx); err != nil {
		t.Fatal(err)
	}
	artifacts, _ := env.artifacts.ListByJobID(ctx, "a")
	if len(artifacts) != 0 {
		t.Errorf("stale artifacts must be deleted, got %+v", artifacts)
	}
}
