// Package widget implements the upload-and-classify widget: a single-owner
// state machine driven by discrete events (file selection, submit, call
// completion) on a bubbletea update loop.
//
// The outbound classification call runs as a tea.Cmd and is the only
// suspension point. Everything else happens synchronously on the caller's
// goroutine, so Widget itself needs no locking.
package widget

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/classifier"
	apperrors "github.com/anime-shed/weld-inspector-go/internal/errors"
	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/observer"
	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/internal/preview"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// DefaultTimeout bounds one classification call when WithTimeout is not used.
const DefaultTimeout = 30 * time.Second

// ResultMsg carries the completion of one submission back to Update.
type ResultMsg struct {
	ID         string
	Prediction *models.Prediction
	Err        error
	Elapsed    time.Duration
}

// Option configures a Widget.
type Option func(*Widget)

// WithPreviews sets the registry preview references are created in.
// Without one the widget renders no preview.
func WithPreviews(r *preview.Registry) Option {
	return func(w *Widget) { w.previews = r }
}

// WithResultObserver sets the callback that receives the full payload of
// every successful submission.
func WithResultObserver(obs observer.ResultObserver) Option {
	return func(w *Widget) { w.results = obs }
}

// WithEvents sets the subject lifecycle events are published to.
func WithEvents(s observer.Subject) Option {
	return func(w *Widget) { w.events = s }
}

// WithTimeout bounds each classification call.
func WithTimeout(d time.Duration) Option {
	return func(w *Widget) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// Widget owns the selected file, its preview reference and the status of
// the most recent submission.
type Widget struct {
	classifier classifier.Classifier
	previews   *preview.Registry
	results    observer.ResultObserver
	events     observer.Subject
	timeout    time.Duration

	file    *picker.SelectedFile
	preview *preview.Ref
	status  Status

	// set while Submitting
	cancel    context.CancelFunc
	submitCtx context.Context

	closed bool
}

// New creates an idle widget.
func New(c classifier.Classifier, opts ...Option) *Widget {
	w := &Widget{
		classifier: c,
		timeout:    DefaultTimeout,
		status:     Idle{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status returns the current status.
func (w *Widget) Status() Status { return w.status }

// File returns the current selection, or nil.
func (w *Widget) File() *picker.SelectedFile { return w.file }

// Preview returns the live preview reference, or nil.
func (w *Widget) Preview() *preview.Ref { return w.preview }

// SelectFile replaces the selection. A nil file deselects. Any previous
// preview reference is released, the outcome is cleared and the status
// returns to Idle. A call still in flight is cancelled and its late result
// is discarded.
func (w *Widget) SelectFile(file *picker.SelectedFile) {
	if w.closed {
		return
	}

	if s, ok := w.status.(Submitting); ok {
		w.cancelInFlight()
		w.publish(observer.SubmissionEvent{
			EventType:    observer.SubmissionCancelled,
			SubmissionID: s.ID,
			FileName:     s.FileName,
		})
	}

	w.releasePreview()
	w.file = file
	w.status = Idle{}

	if file == nil {
		return
	}

	if w.previews != nil {
		ref, err := w.previews.Create(file)
		if err != nil {
			logger.WithError(err).WithField("file", file.Name).Warn("Preview unavailable")
		} else {
			w.preview = ref
		}
	}

	w.publish(observer.SubmissionEvent{
		EventType: observer.FileSelected,
		FileName:  file.Name,
		Metadata:  map[string]interface{}{"mime": file.MIME, "size": file.Size},
	})
}

// RejectSelection reports a file the picker refused (wrong type, missing,
// too large). The selection is cleared and reason becomes the Idle notice.
func (w *Widget) RejectSelection(reason string) {
	if w.closed {
		return
	}
	w.SelectFile(nil)
	w.status = Idle{Notice: reason}
	w.publish(observer.SubmissionEvent{
		EventType: observer.ValidationFailed,
		Err:       apperrors.NewValidationError(reason, nil),
	})
}

// Submit starts a submission. Without a selection it sets the
// "Please select a file" notice and returns nil. While a submission is in
// flight the trigger is disabled and Submit returns nil without touching
// state. Otherwise the status becomes Submitting before Submit returns and
// the returned command performs exactly one classification call.
func (w *Widget) Submit(ctx context.Context) tea.Cmd {
	if w.closed {
		return nil
	}
	if _, busy := w.status.(Submitting); busy {
		return nil
	}

	if w.file == nil {
		w.status = Idle{Notice: apperrors.MsgSelectFile}
		w.publish(observer.SubmissionEvent{
			EventType: observer.ValidationFailed,
			Err:       apperrors.NewValidationError(apperrors.MsgSelectFile, nil),
		})
		return nil
	}

	id := uuid.NewString()
	file := w.file
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	w.cancel = cancel
	w.submitCtx = ctx
	w.status = Submitting{ID: id, FileName: file.Name}

	w.publish(observer.SubmissionEvent{
		EventType:    observer.SubmissionStarted,
		SubmissionID: id,
		FileName:     file.Name,
	})

	c := w.classifier
	return func() tea.Msg {
		defer cancel()
		started := time.Now()
		prediction, err := c.Classify(callCtx, file)
		return ResultMsg{ID: id, Prediction: prediction, Err: err, Elapsed: time.Since(started)}
	}
}

// Update applies messages addressed to the widget. It never returns a
// follow-up command; the signature matches bubbletea models for embedding.
func (w *Widget) Update(msg tea.Msg) tea.Cmd {
	if w.closed {
		return nil
	}
	if m, ok := msg.(ResultMsg); ok {
		w.complete(m)
	}
	return nil
}

func (w *Widget) complete(m ResultMsg) {
	current, ok := w.status.(Submitting)
	if !ok || current.ID != m.ID {
		logger.WithField("submission_id", m.ID).Debug("Dropping result of superseded submission")
		return
	}

	ctx := context.Background()
	if w.submitCtx != nil {
		ctx = context.WithoutCancel(w.submitCtx)
	}
	w.cancelInFlight()

	if m.Err == nil && m.Prediction == nil {
		m.Err = apperrors.NewInternalError("classifier returned no prediction", nil)
	}

	if m.Err != nil {
		w.status = Failed{Message: apperrors.MsgProcessingFailed, Cause: m.Err}
		logger.WithError(m.Err).WithFields(logrus.Fields{
			"submission_id": m.ID,
			"file":          current.FileName,
			"error_type":    errorType(m.Err),
		}).Error("Error uploading file")
		w.publish(observer.SubmissionEvent{
			EventType:    observer.SubmissionFailed,
			SubmissionID: m.ID,
			FileName:     current.FileName,
			Duration:     m.Elapsed,
			Err:          m.Err,
		})
		return
	}

	prediction := *m.Prediction
	w.status = Succeeded{Prediction: prediction}
	w.publish(observer.SubmissionEvent{
		EventType:    observer.SubmissionSucceeded,
		SubmissionID: m.ID,
		FileName:     current.FileName,
		Duration:     m.Elapsed,
		Success:      true,
		Metadata:     map[string]interface{}{"status": prediction.Status, "details": prediction.Details},
	})
	observer.NotifyResult(ctx, w.results, prediction)
}

// Close tears the widget down: the in-flight call is cancelled and the
// preview reference released. The status leaves Submitting and later
// results are ignored. Calling Close twice is safe.
func (w *Widget) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.cancelInFlight()
	if _, busy := w.status.(Submitting); busy {
		w.status = Idle{}
	}
	return w.releasePreview()
}

func (w *Widget) cancelInFlight() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.submitCtx = nil
}

func (w *Widget) releasePreview() error {
	ref := w.preview
	w.preview = nil
	if ref == nil || w.previews == nil {
		return nil
	}
	if err := w.previews.Release(ref); err != nil {
		logger.WithError(err).WithField("preview_id", ref.ID).Warn("Failed to release preview")
		return err
	}
	return nil
}

func (w *Widget) publish(event observer.SubmissionEvent) {
	if w.events == nil {
		return
	}
	ctx := context.Background()
	if w.submitCtx != nil {
		ctx = context.WithoutCancel(w.submitCtx)
	}
	w.events.NotifyObservers(ctx, event)
}

func errorType(err error) apperrors.ErrorType {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return apperrors.ErrorTypeInternal
}
