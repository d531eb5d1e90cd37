package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

// DispatchStatus is the CRM send state shown to the user.
type DispatchStatus string

const (
	DispatchIdle    DispatchStatus = "idle"
	DispatchSending DispatchStatus = "sending"
	DispatchSuccess DispatchStatus = "success"
	DispatchError   DispatchStatus = "error"
)

// SuccessRevertDelay is how long DispatchSuccess lasts before idle.
const SuccessRevertDelay = 3 * time.Second

// ErrDispatchInFlight rejects a dispatch while another is sending.
var ErrDispatchInFlight = errors.New("session: dispatch already in progress")

// DispatchState is the batch-level outcome of the last dispatch.
type DispatchState struct {
	Status DispatchStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Dispatcher sends the lead list to the CRM.
type Dispatcher interface {
	Dispatch(ctx context.Context, company, overview string, leads []model.Lead) error
}

// Dispatch sends every current lead through d. The batch succeeds or
// fails as a whole; a success reverts to idle after the revert delay.
func (s *Session) Dispatch(ctx context.Context, d Dispatcher) error {
	s.mu.Lock()
	if s.dispatch.Status == DispatchSending {
		s.mu.Unlock()
		return ErrDispatchInFlight
	}
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
	s.dispatchSeq++
	seq := s.dispatchSeq
	s.dispatch = DispatchState{Status: DispatchSending}
	company, overview := s.query.Company, s.overview
	leads := append([]model.Lead(nil), s.leads...)
	s.mu.Unlock()

	log := zap.L().With(zap.String("session", s.id), zap.String("company", company), zap.String("phase", "dispatch"))

	err := d.Dispatch(ctx, company, overview, leads)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Error("session: dispatch failed", zap.Error(err))
		s.dispatch = DispatchState{Status: DispatchError, Error: err.Error()}
		return err
	}

	log.Info("session: dispatch complete", zap.Int("leads", len(leads)))
	s.dispatch = DispatchState{Status: DispatchSuccess}
	s.revert = time.AfterFunc(s.revertDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.dispatchSeq == seq && s.dispatch.Status == DispatchSuccess {
			s.dispatch = DispatchState{Status: DispatchIdle}
		}
	})
	return nil
}

// DispatchState returns the current dispatch state.
func (s *Session) DispatchState() DispatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch
}
