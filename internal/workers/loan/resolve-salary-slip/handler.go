// Package resolvesalaryslip settles an application that is waiting on a
// salary slip, with the document delivered through job variables.
package resolvesalaryslip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/conversation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "loan-resolve-salary-slip"
)

type SlipResolver interface {
	ResolveUpload(ctx context.Context, threadID string, doc conversation.Document) (*conversation.UploadResult, error)
}

type Handler struct {
	config       *Config
	service      SlipResolver
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service SlipResolver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ThreadID) == "" {
		return nil, errors.NewInvalidRequestError("threadId is required")
	}

	content, err := base64.StdEncoding.DecodeString(input.ContentBase64)
	if err != nil {
		return nil, errors.NewInvalidDocumentError(fmt.Sprintf("contentBase64: %v", err))
	}
	if len(content) > h.config.MaxDocumentMB<<20 {
		return nil, errors.NewInvalidDocumentError(fmt.Sprintf("document is larger than %d MB", h.config.MaxDocumentMB))
	}

	name := filepath.Base(input.FileName)
	if input.FileName == "" {
		name = "salary_slip"
	}

	res, err := h.service.ResolveUpload(ctx, input.ThreadID, conversation.Document{Name: name, Content: content})
	if err != nil {
		return nil, err
	}

	h.logger.Info("salary slip resolved", map[string]interface{}{
		"threadId":  input.ThreadID,
		"processed": res.Processed,
		"decision":  string(res.Decision),
	})

	return &Output{
		Processed:      res.Processed,
		Decision:       string(res.Decision),
		Reply:          res.Reply,
		Stage:          res.Stage.String(),
		SanctionLetter: res.SanctionLetter,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
