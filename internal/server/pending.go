package server

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateMessageID is returned by admit when the message ID of a new
// request collides with an operation still in flight.
var ErrDuplicateMessageID = errors.New("server: duplicate message ID")

// pendingOp is one admitted request. Its context is derived from the
// connection context, so canceling the connection cancels every
// operation; canceling the operation alone abandons just that request.
// done is closed exactly once when the operation goroutine returns,
// whether or not the slot was already removed from the registry.
type pendingOp struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// complete marks the operation finished. Safe to call more than once.
func (op *pendingOp) complete() {
	op.doneOnce.Do(func() { close(op.done) })
}

// pendingSet tracks in-flight operations by message ID.
type pendingSet struct {
	mu  sync.Mutex
	ops map[int]*pendingOp
}

// insert registers op, failing when its message ID is already present.
func (p *pendingSet) insert(op *pendingOp) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ops == nil {
		p.ops = make(map[int]*pendingOp)
	}
	if _, exists := p.ops[op.id]; exists {
		return false
	}
	p.ops[op.id] = op
	return true
}

// take removes and returns the operation with the given message ID, or
// nil when no such operation is pending.
func (p *pendingSet) take(id int) *pendingOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	op := p.ops[id]
	delete(p.ops, id)
	return op
}

// removeOp deletes op from the registry only if the slot still maps to
// it. An abandon may have freed the ID for reuse; the replacement slot
// must survive the original operation's cleanup.
func (p *pendingSet) removeOp(op *pendingOp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ops[op.id] == op {
		delete(p.ops, op.id)
	}
}

// count returns the number of in-flight operations.
func (p *pendingSet) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}

// snapshotExcept returns every pending operation except the one with the
// given message ID. Pass a negative ID to get all of them.
func (p *pendingSet) snapshotExcept(id int) []*pendingOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]*pendingOp, 0, len(p.ops))
	for _, op := range p.ops {
		if op.id != id {
			ops = append(ops, op)
		}
	}
	return ops
}

// admit reserves a request slot for the given message ID and returns the
// operation bound to it. The bind gate is held for the duration of the
// reservation so admission cannot interleave with a bind's drain or a
// StartTLS eligibility check.
func (c *Connection) admit(id int) (*pendingOp, error) {
	if err := c.bindGate.acquire(c.ctx); err != nil {
		return nil, err
	}
	defer c.bindGate.release()

	opCtx, cancel := context.WithCancel(c.ctx)
	op := &pendingOp{
		id:     id,
		ctx:    opCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !c.pending.insert(op) {
		cancel()
		return nil, ErrDuplicateMessageID
	}
	return op, nil
}

// finishOp releases op's slot and cancels its context. Called by the
// operation goroutine when the handler returns.
func (c *Connection) finishOp(op *pendingOp) {
	c.pending.removeOp(op)
	op.cancel()
	op.complete()
}

// Abandon cancels the pending operation with the given message ID and
// frees its slot immediately. Unknown IDs are ignored; LDAP abandon has
// no response, so there is nothing to report.
func (c *Connection) Abandon(id int) {
	op := c.pending.take(id)
	if op == nil {
		return
	}
	op.cancel()
	c.log.Debug().Int("msgid", id).Msg("operation abandoned")
}

// PendingCount returns the number of operations currently in flight.
func (c *Connection) PendingCount() int {
	return c.pending.count()
}

// drainPending cancels every pending operation except exceptID and waits
// for each to finish. It returns early with the connection error when
// the connection is torn down mid-drain. Caller holds the bind gate, so
// no new operations can be admitted while draining.
func (c *Connection) drainPending(exceptID int) error {
	for _, op := range c.pending.snapshotExcept(exceptID) {
		op.cancel()
		c.pending.removeOp(op)
		select {
		case <-op.done:
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
	return nil
}
