package labelreader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"cellar/internal/logging"
	"cellar/internal/services"
	"cellar/internal/services/llm"
	"cellar/internal/store"
	"cellar/internal/workqueue"
)

// JobKind labels label-reading jobs in logs and metrics.
const JobKind = "label"

const maxErrorLength = 500

const labelInstruction = `Read this wine label photo and return a JSON object with the keys
"producer", "label", "vintage", "region" and "country".
"producer" is the winery or estate. "label" is the wine or cuvee name; use the
grape variety when no name is printed. "vintage" is the harvest year as a
number, or null for non-vintage wines. Use null for anything you cannot read.`

// VisionModel reads images.
type VisionModel interface {
	Configured() bool
	CompleteVisionJSON(ctx context.Context, instruction string, image []byte) (string, error)
}

// TextModel writes free text.
type TextModel interface {
	Configured() bool
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// Reader processes label tasks.
type Reader struct {
	store  *store.Store
	vision VisionModel
	text   TextModel
	logger *slog.Logger
}

// New constructs a reader. text may be nil, in which case review requests
// record a review error.
func New(st *store.Store, vision VisionModel, text TextModel, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reader{
		store:  st,
		vision: vision,
		text:   text,
		logger: logging.NewComponentLogger(logger, "labelreader"),
	}
}

// Job wraps Run for the worker pool.
func (r *Reader) Job(taskID int64, image []byte, wantReview bool) workqueue.Job {
	return workqueue.Job{
		Kind: JobKind,
		Run: func(ctx context.Context) error {
			return r.Run(ctx, taskID, image, wantReview)
		},
	}
}

// Run drives task taskID from queued to done or failed. The returned error
// is for the pool's bookkeeping; the task row is the record pollers see.
func (r *Reader) Run(ctx context.Context, taskID int64, image []byte, wantReview bool) error {
	ctx = services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(ctx, r.logger)

	if _, err := r.store.AdvanceLabelTask(ctx, taskID, store.TaskProcessing, nil, ""); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logging.ErrorWithContext(logger, "label task missing, dropping job", "label_task_missing", "", logging.Error(err))
			return nil
		}
		logging.ErrorWithContext(logger, "label task could not start", "label_task_start_failed", "", logging.Error(err))
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.fail(ctx, logger, taskID, fmt.Errorf("internal error: %v", rec))
			panic(rec)
		}
	}()

	reading, err := r.read(ctx, image)
	if err != nil {
		r.fail(ctx, logger, taskID, err)
		return err
	}

	payload := Payload{Reading: reading}
	if wantReview {
		review, reviewErr := r.review(ctx, reading)
		if reviewErr != nil {
			logging.WarnWithContext(logger, "label review failed, keeping reading", "label_review_failed", "",
				logging.Error(reviewErr))
			payload.Review = json.RawMessage("null")
			payload.ReviewError = truncate(reviewErr.Error())
		} else {
			encoded, _ := json.Marshal(review)
			payload.Review = encoded
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		r.fail(ctx, logger, taskID, fmt.Errorf("encode payload: %w", err))
		return err
	}
	if _, err := r.store.AdvanceLabelTask(ctx, taskID, store.TaskDone, encoded, ""); err != nil {
		logging.ErrorWithContext(logger, "label task could not complete", "label_task_finish_failed",
			"task may have been reaped as stale", logging.Error(err))
		return err
	}
	logger.Info("label read",
		logging.String("producer", reading.Producer),
		logging.String("label", reading.Label),
		logging.Bool("review", wantReview),
	)
	return nil
}

func (r *Reader) read(ctx context.Context, image []byte) (Reading, error) {
	if len(image) == 0 {
		return Reading{}, services.Wrap(services.ErrValidation, "labelreader", "read", "image is empty", nil)
	}
	if r.vision == nil || !r.vision.Configured() {
		return Reading{}, services.Wrap(services.ErrProviderUnavailable, "labelreader", "read", "vision model not configured", nil)
	}
	content, err := r.vision.CompleteVisionJSON(ctx, labelInstruction, image)
	if err != nil {
		return Reading{}, err
	}
	var raw modelReading
	if err := llm.DecodeLLMJSON(content, &raw); err != nil {
		return Reading{}, services.Wrap(services.ErrProviderError, "labelreader", "read", "malformed model response", err)
	}
	reading, err := raw.toReading()
	if err != nil {
		return Reading{}, services.Wrap(services.ErrProviderError, "labelreader", "read", "incomplete model response", err)
	}
	return reading, nil
}

func (r *Reader) review(ctx context.Context, reading Reading) (string, error) {
	if r.text == nil || !r.text.Configured() {
		return "", services.Wrap(services.ErrProviderUnavailable, "labelreader", "review", "text model not configured", nil)
	}
	text, err := r.text.CompleteText(ctx, reviewPrompt(reading))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrProviderError, "labelreader", "review", "empty review", nil)
	}
	return text, nil
}

func reviewPrompt(reading Reading) string {
	var b strings.Builder
	b.WriteString("Write a short review of this wine in at most four sentences, ")
	b.WriteString("covering style, typical tasting notes and when to drink it.\n")
	b.WriteString("Producer: " + reading.Producer + "\n")
	b.WriteString("Wine: " + reading.Label + "\n")
	if reading.Vintage != nil {
		b.WriteString("Vintage: " + strconv.Itoa(*reading.Vintage) + "\n")
	}
	if reading.Region != "" {
		b.WriteString("Region: " + reading.Region + "\n")
	}
	return b.String()
}

func (r *Reader) fail(ctx context.Context, logger *slog.Logger, taskID int64, cause error) {
	logging.WarnWithContext(logger, "label task failed", "label_task_failed", "", logging.Error(cause))
	if _, err := r.store.AdvanceLabelTask(ctx, taskID, store.TaskFailed, nil, truncate(cause.Error())); err != nil {
		logging.ErrorWithContext(logger, "label task failure not recorded", "label_task_fail_write_failed",
			"stale sweep will fail the task later", logging.Error(err))
	}
}

func truncate(message string) string {
	if len(message) <= maxErrorLength {
		return message
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "..."
}
