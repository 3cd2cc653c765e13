package research

import (
	"validata-backend/pkg/config"
	genaifx "validata-backend/pkg/genai"
	"validata-backend/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"google.golang.org/genai"
)

var Module = fx.Module("research.module",
	fx.Provide(NewService),
)

// WorkerModule wires the agent, orchestrator, and queue handler for the
// worker binary.
var WorkerModule = fx.Module("research.worker",
	Module,
	TaskModule,
	fx.Provide(
		provideAgent,
		NewOrchestrator,
	),
	fx.Invoke(registerHandlers),
)

func provideAgent(client *genai.Client, cfg *config.Config) Agent {
	return NewGeminiAgent(client, genaifx.Model(cfg))
}

func registerHandlers(mux *asynq.ServeMux, task *Task) {
	mux.HandleFunc(taskname.ResearchRun, task.HandleResearchRun)
}
