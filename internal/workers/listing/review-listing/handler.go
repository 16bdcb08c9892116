// Package reviewlisting lets a BPMN review task record its decision through
// the same workflow path as the admin HTTP endpoint.
package reviewlisting

import (
	"context"
	"encoding/json"
	"time"

	"affiliate-marketplace/internal/authz"
	"affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/metrics"
	"affiliate-marketplace/internal/common/validation"
	"affiliate-marketplace/internal/marketplace"
	"affiliate-marketplace/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "review-listing"

// Reviewer is satisfied by *marketplace.Service.
type Reviewer interface {
	Review(ctx context.Context, c authz.Capability, upd models.StatusUpdate) (*models.Listing, error)
}

type Handler struct {
	config     *Config
	reviewer   Reviewer
	validator  *marketplace.Validator
	policy     *authz.Policy
	errHandler *errors.JobErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, reviewer Reviewer, validator *marketplace.Validator, policy *authz.Policy, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		reviewer:   reviewer,
		validator:  validator,
		policy:     policy,
		errHandler: errors.NewJobErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.process(ctx, job)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.completeJob(ctx, client, job, output)
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.execute(ctx, input)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewFieldError("(root)", validation.CodeInvalidType, "job variables are not a JSON object")
	}
	return &input, nil
}

// execute authorizes the reviewer named in the variables and applies the
// decision. A reviewer who is not an admin gets FORBIDDEN, which is raised
// as a BPMN error without retries.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	c := h.policy.Resolve(&models.Actor{ID: input.ReviewerID, Email: input.ReviewerEmail})
	if !c.IsAuthenticated() {
		return nil, errors.NewUnauthenticatedError("reviewerId variable is missing")
	}

	upd, err := h.validator.StatusUpdate(map[string]interface{}{
		"listingId": input.ListingID,
		"status":    input.Status,
	})
	if err != nil {
		return nil, err
	}

	listing, err := h.reviewer.Review(ctx, c, *upd)
	if err != nil {
		return nil, err
	}

	return &Output{
		ListingID:  listing.ID,
		Status:     listing.Status,
		OwnerID:    listing.OwnerID,
		ReviewedAt: listing.UpdatedAt,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.Key,
		"listingId": output.ListingID,
		"status":    string(output.Status),
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
