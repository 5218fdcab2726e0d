package acme

import (
	"context"
	"log/slog"

	"github.com/caasmo/restinpieces/db"
)

// RenewalHandler adapts a Runner to the restinpieces job queue, so the same
// lifecycle can run inside a restinpieces app instead of a one-shot command.
// The job payload is unused; everything a run needs comes from the runner's
// configuration.
type RenewalHandler struct {
	runner *Runner
	logger *slog.Logger
}

func NewRenewalHandler(runner *Runner, logger *slog.Logger) *RenewalHandler {
	if runner == nil || logger == nil {
		panic("NewRenewalHandler: received nil runner or logger")
	}
	return &RenewalHandler{
		runner: runner,
		logger: logger.With("job_handler", "cert_renewal"),
	}
}

// Handle executes one renewal run for the queued job. It satisfies
// restinpieces' executor.JobHandler.
func (h *RenewalHandler) Handle(ctx context.Context, job db.Job) error {
	h.logger.Info("starting certificate renewal job", "job_id", job.ID)

	result, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.Error("certificate renewal job failed", "job_id", job.ID, "error", err)
		return err
	}

	h.logger.Info("certificate renewal job complete",
		"job_id", job.ID,
		"certificate", result.CertificateName,
		"reused", result.Reused)
	return nil
}
