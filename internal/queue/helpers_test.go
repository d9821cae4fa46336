package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
	"genbroker/internal/events"
	"genbroker/internal/queue/queuetest"
)

type testEnv struct {
	jobs      *queuetest.JobStore
	artifacts *queuetest.ArtifactStore
	queue     *queuetest.QueueStore
	blocks    *queuetest.BlockStore
	catalog   *queuetest.Catalog
	agent     *queuetest.AgentStub
	emitted   *emitRecorder
	svc       *Service
}

type emitRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *emitRecorder) Emit(ctx context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func newTestEnv() *testEnv {
	jobs := queuetest.NewJobStore()
	env := &testEnv{
		jobs:      jobs,
		artifacts: queuetest.NewArtifactStore(jobs),
		queue:     queuetest.NewQueueStore(),
		blocks:    queuetest.NewBlockStore(),
		catalog:   queuetest.NewCatalog(),
		agent:     &queuetest.AgentStub{},
		emitted:   &emitRecorder{},
	}
	dispatcher := dispatch.NewDispatcher(env.agent, env.jobs, env.emitted, zerolog.Nop())
	env.svc = NewService(Deps{
		Jobs:       env.jobs,
		Artifacts:  env.artifacts,
		Queue:      env.queue,
		Blocks:     env.blocks,
		Catalog:    env.catalog,
		Dispatcher: dispatcher,
		Emitter:    env.emitted,
		Logger:     zerolog.Nop(),
	}, Config{
		OutputBucket: "outputs",
		ConfiguredModels: []domain.ConfiguredModel{
			{ID: "builtin-base", Name: "Builtin Base", StorageLocation: "models/builtin.safetensors"},
			{ID: "builtin-lora", Name: "Builtin LoRA", StorageLocation: "loras/builtin.safetensors", LoRA: true},
		},
	})
	return env
}

func (e *testEnv) seedJob(id, owner string, status domain.JobStatus) *domain.GenerationJob {
	job := &domain.GenerationJob{
		ID:           id,
		OwnerID:      owner,
		Prompt:       "a castle at dusk",
		Steps:        20,
		Width:        512,
		Height:       512,
		Status:       status,
		OutputBucket: "outputs",
		OutputPrefix: "generations/" + owner + "/" + id,
	}
	e.jobs.Put(job)
	return job
}

func validSubmitRequest() SubmitRequest {
	return SubmitRequest{
		Prompt: "a castle at dusk",
		Steps:  20,
		Width:  512,
		Height: 512,
		BaseModels: []domain.ModelSelection{
			{ID: "builtin-base", Source: domain.ModelSourceConfigured},
		},
	}
}
