// Package session holds one user's research result and drives per-lead
// enrichment and CRM dispatch against it.
//
// The lead collection is replaced, never mutated in place: every change
// clones the latest slice, rewrites one index and swaps the clone in under
// the session mutex. Results are addressed by (generation, index), so a
// new research commit invalidates every enrichment still in flight.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/enrichment"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/research"
)

var (
	// ErrAlreadyPending rejects a second enrichment of a pending lead.
	ErrAlreadyPending = errors.New("session: enrichment already pending")

	// ErrLeadNotFound is returned for an index outside the lead list.
	ErrLeadNotFound = errors.New("session: lead not found")

	// ErrStaleResult marks an enrichment result that arrived after a newer
	// research commit. The result is discarded.
	ErrStaleResult = errors.New("session: result belongs to a previous research")
)

// Enricher produces enrichment data for one contact.
type Enricher interface {
	Enrich(ctx context.Context, s enrichment.Subject) (*model.EnrichedData, error)
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string                 `json:"id"`
	Generation uint64                 `json:"generation"`
	Company    string                 `json:"company,omitempty"`
	Location   string                 `json:"location,omitempty"`
	Overview   string                 `json:"overview,omitempty"`
	Leads      []model.Lead           `json:"leads"`
	Sources    []model.GroundingChunk `json:"sources"`
	Dispatch   DispatchState          `json:"dispatch"`
}

// Option configures a Session.
type Option func(*Session)

// WithSuccessRevertDelay overrides how long a successful dispatch stays
// visible before the status returns to idle.
func WithSuccessRevertDelay(d time.Duration) Option {
	return func(s *Session) { s.revertDelay = d }
}

// Session is safe for concurrent use.
type Session struct {
	id          string
	revertDelay time.Duration

	mu        sync.Mutex
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
	query     research.Query
	overview  string
	sources   []model.GroundingChunk
	leads     []model.Lead

	dispatch    DispatchState
	dispatchSeq uint64
	revert      *time.Timer
}

// New creates an empty session with a random ID.
func New(opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          uuid.NewString(),
		revertDelay: SuccessRevertDelay,
		genCtx:      ctx,
		genCancel:   cancel,
		dispatch:    DispatchState{Status: DispatchIdle},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Commit replaces the research result as one unit and starts a new
// generation. Enrichments of the previous generation are cancelled and
// their results will be discarded.
func (s *Session) Commit(q research.Query, res *model.ResearchResult) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(q, res)
	return s.gen
}

// Reset discards the current result when a new query starts. The session
// is left empty under a fresh generation, which is returned for CommitAt.
func (s *Session) Reset(q research.Query) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	s.query = q
	s.overview = ""
	s.sources = nil
	s.leads = nil
	return s.gen
}

// CommitAt commits res only if no other query started since gen was
// issued by Reset. Otherwise it returns ErrStaleResult.
func (s *Session) CommitAt(gen uint64, q research.Query, res *model.ResearchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return ErrStaleResult
	}
	s.commit(q, res)
	return nil
}

// Close cancels all in-flight enrichment. Results that arrive afterwards
// are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genCancel()
	s.gen++
	if s.revert != nil {
		s.revert.Stop()
	}
}

// advance cancels the current generation and opens the next. The caller
// holds mu.
func (s *Session) advance() {
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	s.gen++
}

func (s *Session) commit(q research.Query, res *model.ResearchResult) {
	s.advance()
	s.query = q
	s.overview = res.Overview
	s.sources = slices.Clone(res.Sources)
	s.leads = slices.Clone(res.Leads)

	zap.L().Info("session: research committed",
		zap.String("session", s.id),
		zap.String("company", q.Company),
		zap.Uint64("generation", s.gen),
		zap.Int("leads", len(s.leads)),
	)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		Generation: s.gen,
		Company:    s.query.Company,
		Location:   s.query.Location,
		Overview:   s.overview,
		Leads:      slices.Clone(s.leads),
		Sources:    slices.Clone(s.sources),
		Dispatch:   s.dispatch,
	}
	if snap.Leads == nil {
		snap.Leads = []model.Lead{}
	}
	if snap.Sources == nil {
		snap.Sources = []model.GroundingChunk{}
	}
	return snap
}

// Selection is a set of lead positions taken from one generation.
type Selection struct {
	Generation uint64
	Indexes    []int
}

// Select lists lead positions in display order. With primaryOnly set,
// only primary targets are listed.
func (s *Session) Select(primaryOnly bool) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := Selection{Generation: s.gen, Indexes: make([]int, 0, len(s.leads))}
	for i, l := range s.leads {
		if primaryOnly && !l.IsPrimaryTarget {
			continue
		}
		sel.Indexes = append(sel.Indexes, i)
	}
	return sel
}

// generation returns the current generation and its context.
func (s *Session) generation() (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.genCtx
}

// update rewrites one lead against the latest state. The caller holds mu.
func (s *Session) update(idx int, fn func(model.Lead) model.Lead) {
	next := slices.Clone(s.leads)
	next[idx] = fn(next[idx])
	s.leads = next
}

// Ticket addresses one in-flight enrichment.
type Ticket struct {
	Generation uint64
	Index      int
	Subject    enrichment.Subject

	done context.Context
}

// Begin moves a lead to pending and clears its previous error. It fails
// without side effects if the lead is already pending.
func (s *Session) Begin(idx int) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(idx)
}

// BeginAt is Begin for a lead position taken from generation gen. It
// returns ErrStaleResult once a newer generation exists.
func (s *Session) BeginAt(gen uint64, idx int) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return Ticket{}, ErrStaleResult
	}
	return s.begin(idx)
}

func (s *Session) begin(idx int) (Ticket, error) {
	if idx < 0 || idx >= len(s.leads) {
		return Ticket{}, ErrLeadNotFound
	}
	l := s.leads[idx]
	if l.EnrichmentStatus == model.EnrichmentPending {
		return Ticket{}, ErrAlreadyPending
	}

	s.update(idx, func(l model.Lead) model.Lead {
		l.EnrichmentStatus = model.EnrichmentPending
		l.EnrichmentError = ""
		return l
	})

	return Ticket{
		Generation: s.gen,
		Index:      idx,
		Subject:    enrichment.Subject{Name: l.Name, Role: l.Role, Company: s.query.Company},
		done:       s.genCtx,
	}, nil
}

// Finish records the outcome of the enrichment started by t. A ticket
// from an older generation is discarded with ErrStaleResult.
func (s *Session) Finish(t Ticket, data *model.EnrichedData, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.gen {
		zap.L().Info("session: discarding stale enrichment",
			zap.String("session", s.id),
			zap.Int("index", t.Index),
			zap.Uint64("ticket_generation", t.Generation),
			zap.Uint64("generation", s.gen),
		)
		return ErrStaleResult
	}
	if t.Index < 0 || t.Index >= len(s.leads) {
		return ErrLeadNotFound
	}

	s.update(t.Index, func(l model.Lead) model.Lead {
		switch {
		case err != nil:
			l.EnrichmentStatus = model.EnrichmentFailed
			l.EnrichmentError = FailureMessage(err)
		case lead.HasData(data):
			l.EnrichmentStatus = model.EnrichmentEnriched
			l.EnrichedData = data
		default:
			l.EnrichmentStatus = model.EnrichmentNotFound
			l.EnrichedData = nil
		}
		return l
	})
	return nil
}

// Enrich runs one enrichment for the lead at idx. Only Begin errors are
// returned; the enrichment outcome is recorded on the lead.
func (s *Session) Enrich(ctx context.Context, idx int, e Enricher) error {
	t, err := s.Begin(idx)
	if err != nil {
		return err
	}
	return s.run(ctx, t, e)
}

// Start begins the enrichment synchronously and runs it in the
// background. done, if non-nil, is called once the outcome is recorded.
func (s *Session) Start(ctx context.Context, idx int, e Enricher, done func()) error {
	t, err := s.Begin(idx)
	if err != nil {
		return err
	}
	go func() {
		if done != nil {
			defer done()
		}
		if err := s.run(ctx, t, e); err != nil {
			zap.L().Error("session: record enrichment", zap.String("session", s.id), zap.Error(err))
		}
	}()
	return nil
}

func (s *Session) run(ctx context.Context, t Ticket, e Enricher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.done, cancel)
	defer stop()

	data, callErr := e.Enrich(ctx, t.Subject)
	if callErr != nil {
		zap.L().Warn("session: enrichment failed",
			zap.String("session", s.id),
			zap.Int("index", t.Index),
			zap.String("contact", t.Subject.Name),
			zap.Error(callErr),
		)
	}
	if err := s.Finish(t, data, callErr); err != nil && !errors.Is(err, ErrStaleResult) {
		return err
	}
	return nil
}
