package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stemfetch/internal/logging"
	"stemfetch/internal/services"
	"stemfetch/internal/services/craig"
)

const stageName = "job"

// Client is the subset of the recording service API the controller drives.
type Client interface {
	Job(ctx context.Context, id, key string) (*craig.Job, error)
	CreateJob(ctx context.Context, id, key string, req craig.JobRequest) (*craig.Job, error)
	DeleteJob(ctx context.Context, id, key string) error
}

// Request describes the conversion job the pipeline needs.
type Request struct {
	RecordingID   string
	Key           string
	Body          craig.JobRequest
	ForceRecreate bool
}

// Result carries the finished job's output identity.
type Result struct {
	OutputFileName string
	OutputSize     int64
}

// Controller manages the server-side job lifecycle: reuse, recreate, and
// poll to completion. Polling blocks the calling goroutine between checks.
type Controller struct {
	client   Client
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	sleep    func(time.Duration)
}

// NewController builds a controller with the given polling cadence and
// wall-clock budget.
func NewController(client Client, logger *slog.Logger, interval, timeout time.Duration) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Controller{
		client:   client,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		sleep:    time.Sleep,
	}
}

// WithSleep sets a custom sleep function (for testing).
func (c *Controller) WithSleep(sleep func(time.Duration)) {
	c.sleep = sleep
}

// Ensure drives the job state machine until a finished job exists:
//   - a finished job with an output file is reused without polling
//   - a failed job triggers one recreate-and-poll cycle
//   - a pending or running job is polled to completion
//   - no job (or ForceRecreate) creates one, then polls
//
// A job that fails during polling consumes the single automatic recreate;
// a second failure is surfaced.
func (c *Controller) Ensure(ctx context.Context, req Request) (Result, error) {
	existing, err := c.client.Job(ctx, req.RecordingID, req.Key)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "inspect", "", err)
	}

	if req.ForceRecreate && existing != nil {
		c.logger.Info("deleting existing job for forced recreation",
			logging.String("status", string(Normalize(existing.Status))))
		if err := c.client.DeleteJob(ctx, req.RecordingID, req.Key); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, stageName, "delete", "", err)
		}
		existing = nil
	}

	retried := false
	if existing != nil {
		switch state := Normalize(existing.Status); {
		case state == StateFinished && existing.OutputFileName != "":
			c.logger.Info("reusing finished job",
				logging.String("output_file", existing.OutputFileName),
				logging.Int64("output_size", existing.OutputSize))
			return Result{OutputFileName: existing.OutputFileName, OutputSize: existing.OutputSize}, nil
		case state.Failed():
			c.logger.Warn("existing job in failure state, creating a new one",
				logging.String("status", string(state)))
			if err := c.create(ctx, req); err != nil {
				return Result{}, err
			}
			// The failed job already consumed the automatic retry.
			retried = true
		}
	} else {
		c.logger.Info("creating conversion job",
			logging.String("container", req.Body.Options.Container),
			logging.String("format", req.Body.Options.Format))
		if err := c.create(ctx, req); err != nil {
			return Result{}, err
		}
	}

	result, err := c.poll(ctx, req)
	if err == nil || retried || !isJobFailure(err) {
		return result, err
	}

	c.logger.Warn("job failed during polling, retrying once", logging.Error(err))
	if err := c.create(ctx, req); err != nil {
		return Result{}, err
	}
	return c.poll(ctx, req)
}

func (c *Controller) create(ctx context.Context, req Request) error {
	if _, err := c.client.CreateJob(ctx, req.RecordingID, req.Key, req.Body); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "create", "", err)
	}
	return nil
}

type jobFailureError struct {
	state State
}

func (e *jobFailureError) Error() string {
	return fmt.Sprintf("job reached %s state", e.state)
}

func isJobFailure(err error) bool {
	var failure *jobFailureError
	return errors.As(err, &failure)
}

func (c *Controller) poll(ctx context.Context, req Request) (Result, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		job, err := c.client.Job(ctx, req.RecordingID, req.Key)
		if err != nil {
			return Result{}, services.Wrap(services.ErrTransient, stageName, "poll", "", err)
		}
		if job != nil {
			state := Normalize(job.Status)
			c.logger.Debug("job status",
				logging.String("status", string(state)),
				logging.String("output_file", job.OutputFileName))
			if state == StateFinished && job.OutputFileName != "" {
				return Result{OutputFileName: job.OutputFileName, OutputSize: job.OutputSize}, nil
			}
			if state.Failed() {
				return Result{}, services.Wrap(services.ErrTransient, stageName, "poll", "", &jobFailureError{state: state})
			}
		}
		if time.Now().After(deadline) {
			return Result{}, services.Wrap(services.ErrTimeout, stageName, "poll",
				fmt.Sprintf("job did not finish within %s", c.timeout), nil)
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		c.sleep(c.interval)
	}
}
