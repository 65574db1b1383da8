package directory

import (
	"context"
	"sync"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

// Call is one request seen by a Recorder.
type Call struct {
	Operation      Operation
	KeyID          id.KeyID
	ClaimType      models.ClaimType
	Reason         models.ClaimReason
	IdempotencyKey string
}

// Recorder is an in-process Gateway that remembers every call. It backs
// local runs and service tests.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	err   error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every later call return err. Pass nil to recover.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) StartClaim(ctx context.Context, keyID id.KeyID, claimType models.ClaimType) error {
	return r.record(Call{Operation: OpStartClaim, KeyID: keyID, ClaimType: claimType, IdempotencyKey: IdempotencyKey(ctx)})
}

func (r *Recorder) ApproveClaim(ctx context.Context, keyID id.KeyID) error {
	return r.record(Call{Operation: OpApproveClaim, KeyID: keyID, IdempotencyKey: IdempotencyKey(ctx)})
}

func (r *Recorder) CancelClaim(ctx context.Context, keyID id.KeyID, reason models.ClaimReason) error {
	return r.record(Call{Operation: OpCancelClaim, KeyID: keyID, Reason: reason, IdempotencyKey: IdempotencyKey(ctx)})
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, c)
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the recorded calls of one operation.
func (r *Recorder) CallsFor(op Operation) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Operation == op {
			out = append(out, c)
		}
	}
	return out
}
