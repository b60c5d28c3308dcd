package navigation_test

import (
	"testing"

	"github.com/aretw0/nova/internal/testutils"
	"github.com/aretw0/nova/pkg/affinity"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/google/uuid"
)

type fixture struct {
	sched   *scheduler.Scheduler
	repo    *hooks.Repository
	factory *testutils.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithWorkers(t, 8)
}

func newFixtureWithWorkers(t *testing.T, workers int) *fixture {
	t.Helper()
	loop := affinity.NewLoop()
	loop.Start()
	repo := hooks.NewRepository()
	sched := scheduler.New(loop, scheduler.WithHooks(repo), scheduler.WithWorkers(workers))
	t.Cleanup(func() {
		sched.Stop()
		loop.Stop()
	})
	return &fixture{sched: sched, repo: repo, factory: testutils.NewFactory()}
}

func steps(titles ...string) []domain.StepInfo {
	out := make([]domain.StepInfo, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.NewStepInfo(title, title+"View", title+"ViewModel"))
	}
	return out
}

func ids(infos []domain.StepInfo) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.NodeID)
	}
	return out
}
