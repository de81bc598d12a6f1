package quotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrSessionClosed is returned by every operation on a closed session
var ErrSessionClosed = shared.NewDomainError(shared.CodeInvalidState, "session is closed")

// SessionConfig tunes a session
type SessionConfig struct {
	// MinRefreshInterval is the shortest time between two preview refreshes.
	// Zero refreshes after every accepted command.
	MinRefreshInterval time.Duration
	// QueueSize is the capacity of the command queue
	QueueSize int
}

// DefaultSessionConfig returns the settings used when none are given
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{MinRefreshInterval: 250 * time.Millisecond, QueueSize: 64}
}

// State is the session's document at a given revision
type State struct {
	SessionID uuid.UUID
	// Revision increases with every accepted command and reset
	Revision  uint64
	Quotation quotation.Quotation
	Estimate  *estimation.Result
}

// PreviewUpdate is one preview refresh. Err is set when the document could
// not be laid out or drawn; the previous preview is then stale.
type PreviewUpdate struct {
	SessionID  uuid.UUID
	Revision   uint64
	Result     *PreviewResult
	Err        error
	RenderedAt time.Time
}

// Session is one isolated editing instance of a quotation. Commands are
// queued and applied one at a time, in arrival order, by a single
// goroutine; readers never observe a half-applied edit.
type Session struct {
	id       uuid.UUID
	pipeline *Pipeline
	events   shared.EventPublisher
	metrics  Metrics
	logger   *zap.Logger

	requests  chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	baseCtx    context.Context
	baseCancel context.CancelFunc
	lastActive atomic.Int64

	// owned by the loop goroutine
	q         quotation.Quotation
	revision  uint64
	dirty     bool
	coalesced int
	limiter   *rate.Limiter
	timer     *time.Timer
	timerC    <-chan time.Time

	mu           sync.Mutex
	latest       *PreviewUpdate
	sinks        map[*PreviewSink]struct{}
	inflight     map[*ExportTicket]struct{}
	exportCtx    context.Context
	exportCancel context.CancelFunc
	exports      sync.WaitGroup
}

// NewSession starts a session editing q. events, metrics and logger may be nil.
func NewSession(
	id uuid.UUID,
	q quotation.Quotation,
	pipeline *Pipeline,
	events shared.EventPublisher,
	metrics Metrics,
	config SessionConfig,
	logger *zap.Logger,
) *Session {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultSessionConfig().QueueSize
	}
	limit := rate.Inf
	if config.MinRefreshInterval > 0 {
		limit = rate.Every(config.MinRefreshInterval)
	}

	s := &Session{
		id:       id,
		pipeline: pipeline,
		events:   events,
		metrics:  metrics,
		logger:   logger.With(zap.String("session_id", id.String())),
		requests: make(chan func(), config.QueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		q:        q,
		limiter:  rate.NewLimiter(limit, 1),
		sinks:    make(map[*PreviewSink]struct{}),
		inflight: make(map[*ExportTicket]struct{}),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.exportCtx, s.exportCancel = context.WithCancel(s.baseCtx)
	s.touch()

	metrics.SessionOpened()
	go s.run()
	return s
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// LastActive returns when the session last received a request
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed once the session has shut down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) run() {
	defer close(s.done)

	// the first preview is a leading-edge refresh
	s.scheduleRefresh()

	for {
		select {
		case fn := <-s.requests:
			fn()
		case <-s.timerC:
			s.timer, s.timerC = nil, nil
			s.refresh()
		case <-s.quit:
			s.shutdown()
			return
		}
	}
}

// Request states shared between do and the loop goroutine
const (
	requestQueued int32 = iota
	requestStarted
	requestAbandoned
)

// do runs fn on the loop goroutine after every request queued before it.
// fn runs if and only if the caller receives its result: a caller whose ctx
// ends before the loop picks fn up gets ctx.Err() and fn is skipped, and
// once fn has started the caller waits for it regardless of ctx.
func (s *Session) do(ctx context.Context, fn func() error) error {
	s.touch()

	var (
		err   error
		state atomic.Int32
	)
	reply := make(chan struct{})
	op := func() {
		defer close(reply)
		if !state.CompareAndSwap(requestQueued, requestStarted) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("session request panicked", zap.Any("panic", r), zap.Stack("stack"))
				err = fmt.Errorf("session request panicked: %v", r)
			}
		}()
		err = fn()
	}

	select {
	case s.requests <- op:
	case <-s.quit:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return err
	case <-s.done:
	case <-ctx.Done():
		if state.CompareAndSwap(requestQueued, requestAbandoned) {
			return ctx.Err()
		}
		select {
		case <-reply:
			return err
		case <-s.done:
		}
	}
	select {
	case <-reply:
		return err
	default:
		return ErrSessionClosed
	}
}

// State returns the current document and its totals
func (s *Session) State(ctx context.Context) (*State, error) {
	var state *State
	err := s.do(ctx, func() error {
		state = s.state()
		return nil
	})
	return state, err
}

func (s *Session) state() *State {
	return &State{
		SessionID: s.id,
		Revision:  s.revision,
		Quotation: s.q,
		Estimate:  estimation.Estimate(s.q),
	}
}

// Apply applies cmds in order as one edit. If any command is rejected the
// document keeps its previous state and the command's error is returned.
func (s *Session) Apply(ctx context.Context, cmds ...quotation.Command) (*State, error) {
	if len(cmds) == 0 {
		return nil, shared.NewValidationError("commands", "at least one command is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "session.apply",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, s.id),
		telemetry.WithAttribute(telemetry.SpanAttrCommand, cmds[0].Name()),
	)
	defer span.End()

	var state *State
	err := s.do(ctx, func() error {
		next := s.q
		events := make([]shared.DomainEvent, 0, len(cmds))
		for _, cmd := range cmds {
			out, err := cmd.Apply(next)
			if err != nil {
				s.metrics.CommandRejected(cmd.Name())
				s.logger.Debug("command rejected", zap.String("command", cmd.Name()), zap.Error(err))
				return err
			}
			next = out
			events = append(events, quotation.NewQuotationChangedEvent(s.id, cmd.Name(), next))
		}

		s.q = next
		s.revision++
		for _, cmd := range cmds {
			s.metrics.CommandApplied(cmd.Name())
		}
		s.publish(context.WithoutCancel(ctx), events...)
		s.scheduleRefresh()
		state = s.state()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrTasks, state.Quotation.TaskCount())
	return state, nil
}

// Reset starts over with q. Exports still running are abandoned.
func (s *Session) Reset(ctx context.Context, q quotation.Quotation) (*State, error) {
	var state *State
	err := s.do(ctx, func() error {
		abandoned := s.abandonExports()
		s.q = q
		s.revision++
		s.publish(ctx, quotation.NewQuotationResetEvent(s.id, abandoned))
		s.scheduleRefresh()
		state = s.state()
		s.logger.Info("session reset", zap.Int("abandoned_exports", abandoned))
		return nil
	})
	return state, err
}

// Preview returns the preview of the current revision, refreshing it first
// if edits are pending. A failed refresh is returned as the error as well.
func (s *Session) Preview(ctx context.Context) (*PreviewUpdate, error) {
	var update *PreviewUpdate
	err := s.do(ctx, func() error {
		s.flush()
		s.mu.Lock()
		update = s.latest
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if update == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "no preview rendered yet")
	}
	return update, update.Err
}

// scheduleRefresh marks the preview stale and refreshes it now, or once the
// limiter allows. Edits arriving while a refresh is pending are folded into it.
func (s *Session) scheduleRefresh() {
	s.dirty = true
	if s.timerC != nil {
		s.coalesced++
		return
	}
	if d := s.limiter.Reserve().Delay(); d > 0 {
		s.timer = time.NewTimer(d)
		s.timerC = s.timer.C
		return
	}
	s.refresh()
}

// flush performs a pending refresh immediately
func (s *Session) flush() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer, s.timerC = nil, nil
	}
	if s.dirty {
		s.refresh()
	}
}

func (s *Session) refresh() {
	s.dirty = false

	ctx, span := telemetry.StartSpan(s.baseCtx, "session.refresh",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, s.id))
	defer span.End()

	if s.coalesced > 0 {
		telemetry.AddEvent(span, "coalesced", "edits", s.coalesced)
		s.metrics.EditsCoalesced(s.coalesced)
		s.coalesced = 0
	}

	result, err := s.pipeline.Preview(ctx, s.q)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("preview refresh failed", zap.Uint64("revision", s.revision), zap.Error(err))
	}
	update := &PreviewUpdate{
		SessionID:  s.id,
		Revision:   s.revision,
		Result:     result,
		Err:        err,
		RenderedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = update
	for sink := range s.sinks {
		sink.offer(update)
	}
}

// Subscribe returns a sink that receives every preview refresh, starting
// with the latest one.
func (s *Session) Subscribe() (*PreviewSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return nil, ErrSessionClosed
	default:
	}

	sink := &PreviewSink{c: make(chan *PreviewUpdate, 1), session: s}
	s.sinks[sink] = struct{}{}
	if s.latest != nil {
		sink.offer(s.latest)
	}
	return sink, nil
}

func (s *Session) unsubscribe(sink *PreviewSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sinks[sink]; ok {
		delete(s.sinks, sink)
		close(sink.c)
	}
}

// StartExport captures the document as of every edit queued before it and
// exports it in the background. The preview is brought up to date first.
func (s *Session) StartExport(ctx context.Context) (*ExportTicket, error) {
	var ticket *ExportTicket
	err := s.do(ctx, func() error {
		s.flush()
		snapshot := s.q

		s.mu.Lock()
		jobCtx, cancel := context.WithCancel(s.exportCtx)
		ticket = &ExportTicket{
			ID:       uuid.New(),
			Revision: s.revision,
			cancel:   cancel,
			done:     make(chan struct{}),
		}
		s.inflight[ticket] = struct{}{}
		s.mu.Unlock()

		s.exports.Add(1)
		go s.runExport(jobCtx, ticket, snapshot)
		return nil
	})
	return ticket, err
}

// Export exports the current document and waits for the artifact. The
// export is abandoned if ctx ends first.
func (s *Session) Export(ctx context.Context) (*printing.Artifact, error) {
	ticket, err := s.StartExport(ctx)
	if err != nil {
		return nil, err
	}
	return ticket.Wait(ctx)
}

func (s *Session) runExport(ctx context.Context, ticket *ExportTicket, snapshot quotation.Quotation) {
	defer s.exports.Done()
	defer ticket.cancel()

	logger := s.logger.With(zap.String("export_id", ticket.ID.String()), zap.Uint64("revision", ticket.Revision))
	artifact, err := s.pipeline.Export(ctx, s.id, snapshot)

	s.mu.Lock()
	delete(s.inflight, ticket)
	s.mu.Unlock()

	// events outlive the export's own cancellation
	eventCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		s.metrics.ExportFinished(telemetry.OutcomeSuccess)
		s.publish(eventCtx, quotation.NewQuotationExportedEvent(s.id, artifact.FileName, artifact.PageCount, artifact.Size))
		logger.Info("export finished", zap.String("file_name", artifact.FileName), zap.Int("pages", artifact.PageCount))
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		s.metrics.ExportFinished(telemetry.OutcomeCancelled)
		s.publish(eventCtx, quotation.NewQuotationExportFailedEvent(s.id, "abandoned"))
		logger.Info("export abandoned")
	default:
		s.metrics.ExportFinished(telemetry.OutcomeFailed)
		s.publish(eventCtx, quotation.NewQuotationExportFailedEvent(s.id, err.Error()))
		logger.Warn("export failed", zap.Error(err))
	}
	ticket.finish(artifact, err)
}

// abandonExports cancels every running export and returns how many there were
func (s *Session) abandonExports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.inflight)
	s.exportCancel()
	s.exportCtx, s.exportCancel = context.WithCancel(s.baseCtx)
	return n
}

func (s *Session) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish session events", zap.Error(err))
	}
}

// Close stops the session, abandoning running exports, and waits for its
// goroutines to finish or ctx to end.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.quit) })

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	exported := make(chan struct{})
	go func() {
		s.exports.Wait()
		close(exported)
	}()
	select {
	case <-exported:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) shutdown() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer, s.timerC = nil, nil
	}

	s.mu.Lock()
	abandoned := len(s.inflight)
	for sink := range s.sinks {
		delete(s.sinks, sink)
		close(sink.c)
	}
	s.mu.Unlock()

	s.baseCancel()
	s.metrics.SessionClosed()
	s.logger.Info("session closed", zap.Uint64("revision", s.revision), zap.Int("abandoned_exports", abandoned))
}

// PreviewSink delivers preview refreshes. Only the newest undelivered
// update is kept; a slow reader skips intermediate ones.
type PreviewSink struct {
	c       chan *PreviewUpdate
	session *Session
}

// C returns the update channel. It is closed by Close or when the session ends.
func (k *PreviewSink) C() <-chan *PreviewUpdate {
	return k.c
}

// Close stops delivery
func (k *PreviewSink) Close() {
	k.session.unsubscribe(k)
}

// offer is called with the session mutex held
func (k *PreviewSink) offer(u *PreviewUpdate) {
	select {
	case k.c <- u:
		return
	default:
	}
	select {
	case <-k.c:
	default:
	}
	select {
	case k.c <- u:
	default:
	}
}

// ExportTicket tracks a background export
type ExportTicket struct {
	ID uuid.UUID
	// Revision is the document revision being exported
	Revision uint64

	cancel   context.CancelFunc
	done     chan struct{}
	artifact *printing.Artifact
	err      error
}

// Done is closed when the export has finished
func (t *ExportTicket) Done() <-chan struct{} {
	return t.done
}

// Cancel abandons the export
func (t *ExportTicket) Cancel() {
	t.cancel()
}

// Wait blocks until the export finishes. If ctx ends first the export is
// abandoned and ctx's error returned.
func (t *ExportTicket) Wait(ctx context.Context) (*printing.Artifact, error) {
	select {
	case <-t.done:
		return t.artifact, t.err
	case <-ctx.Done():
		t.cancel()
		return nil, ctx.Err()
	}
}

func (t *ExportTicket) finish(artifact *printing.Artifact, err error) {
	t.artifact, t.err = artifact, err
	close(t.done)
}
