package tdbx

import (
	"slices"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// txnSignature is the magic number for valid transactions
const txnSignature uint32 = 0x54445458 // "TDTX"

// TxnState is the lifecycle state of a transaction.
type TxnState uint8

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnActive:
		return "active"
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	}
	return "unknown"
}

// Txn is a read or write transaction.
//
// A Txn is not safe for concurrent use. Once Commit or Abort returns the
// transaction and every cursor, iterator and View obtained from it fail with
// ErrUseAfterFinish.
type Txn struct {
	signature uint32
	env       *Env
	parent    *Txn
	child     *Txn
	raw       engine.Txn
	id        uint64
	readOnly  bool
	state     TxnState

	// gen counts mutations; Views compare against it.
	gen uint64

	cursors []*rawCursor
}

func (e *Env) newTxn(parent *Txn, raw engine.Txn, readOnly bool) *Txn {
	txn := &Txn{
		signature: txnSignature,
		env:       e,
		parent:    parent,
		raw:       raw,
		id:        e.txnSeq.Add(1),
		readOnly:  readOnly,
	}
	log.Tracef("Began txn %d on %s (read-only=%v, nested=%v)", txn.id, e.path, readOnly, parent != nil)
	return txn
}

// valid returns true if the transaction is valid.
func (txn *Txn) valid() bool {
	return txn != nil && txn.signature == txnSignature
}

// Env returns the transaction's environment.
func (txn *Txn) Env() *Env {
	return txn.env
}

// ID returns a process-unique transaction id.
func (txn *Txn) ID() uint64 {
	return txn.id
}

// IsReadOnly returns true if this is a read-only transaction.
func (txn *Txn) IsReadOnly() bool {
	return txn.readOnly
}

// State returns the lifecycle state.
func (txn *Txn) State() TxnState {
	return txn.state
}

// Parent returns the parent of a nested transaction, or nil.
func (txn *Txn) Parent() *Txn {
	return txn.parent
}

// check validates the transaction for use.
func (txn *Txn) check() error {
	if !txn.valid() {
		return NewError(ErrBadTxn)
	}
	if txn.state != TxnActive {
		return NewError(ErrUseAfterFinish)
	}
	if txn.child != nil {
		return NewError(ErrChildTxnActive)
	}
	return nil
}

// checkWrite validates the transaction for a mutation.
func (txn *Txn) checkWrite() error {
	if err := txn.check(); err != nil {
		return err
	}
	if txn.readOnly {
		return NewError(ErrTxnReadOnly)
	}
	return nil
}

// alive reports whether the transaction has not finished. Unlike check it
// tolerates a live child.
func (txn *Txn) alive() bool {
	return txn.valid() && txn.state == TxnActive
}

// touch records a mutation, invalidating outstanding Views.
func (txn *Txn) touch() {
	txn.gen++
}

// Commit makes the transaction's writes durable and visible. For a read
// transaction it simply releases the snapshot. If the engine rejects the
// commit (for example ErrMapFull) the transaction is aborted and none of its
// writes are visible.
func (txn *Txn) Commit() error {
	if err := txn.check(); err != nil {
		return err
	}
	txn.closeCursors()

	if err := txn.raw.Commit(); err != nil {
		txn.finish(TxnAborted)
		log.Warnf("Commit of txn %d on %s failed: %v", txn.id, txn.env.path, err)
		return wrapEngine(err)
	}
	if txn.parent != nil {
		txn.parent.touch()
	}
	txn.finish(TxnCommitted)
	return nil
}

// Abort discards the transaction's writes. It is a no-op on a finished
// transaction. A live child is aborted first.
func (txn *Txn) Abort() {
	if !txn.alive() {
		return
	}
	if txn.child != nil {
		txn.child.Abort()
	}
	txn.closeCursors()
	txn.raw.Abort()
	txn.finish(TxnAborted)
}

// finish moves the transaction to a terminal state and releases its slot.
func (txn *Txn) finish(state TxnState) {
	txn.state = state
	log.Tracef("Txn %d %s", txn.id, state)

	if txn.parent != nil {
		txn.parent.child = nil
		return
	}
	txn.env.leave(txn.readOnly, true)
	if !txn.readOnly {
		txn.env.writer.Release(1)
	}
}

// BeginNested starts a child write transaction. Until the child finishes the
// parent rejects every operation with ErrChildTxnActive. Committing the
// child folds its writes into the parent; aborting discards them.
func (txn *Txn) BeginNested() (*Txn, error) {
	if err := txn.checkWrite(); err != nil {
		return nil, err
	}
	if !txn.env.driver.Features().NestedTxns {
		return nil, WrapError(ErrIncompatible, engine.ErrIncompatible)
	}
	raw, err := txn.env.handle.get().BeginTxn(txn.raw, false)
	if err != nil {
		return nil, wrapEngine(err)
	}
	child := txn.env.newTxn(txn, raw, false)
	txn.child = child
	return child, nil
}

// ListDatabases returns the sorted names of the named databases.
func (txn *Txn) ListDatabases() ([]string, error) {
	if err := txn.check(); err != nil {
		return nil, err
	}
	names, err := txn.raw.ListDBs()
	if err != nil {
		return nil, wrapEngine(err)
	}
	slices.Sort(names)
	return names, nil
}

// DropDatabase removes the named database and its contents. Handles opened
// on it must not be used afterwards.
func (txn *Txn) DropDatabase(name string) error {
	if err := txn.checkWrite(); err != nil {
		return err
	}
	if name == "" {
		return WrapError(ErrIncompatible, errDefaultDrop)
	}
	dbi, err := txn.raw.OpenDB(name, false)
	if err != nil {
		return wrapEngine(err)
	}
	if err := txn.raw.Drop(dbi, true); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// closeCursors invalidates every cursor opened in the transaction.
func (txn *Txn) closeCursors() {
	for _, c := range txn.cursors {
		c.release()
	}
	txn.cursors = nil
}

// removeCursor forgets a cursor closed by its owner.
func (txn *Txn) removeCursor(c *rawCursor) {
	for i, cur := range txn.cursors {
		if cur == c {
			txn.cursors = append(txn.cursors[:i], txn.cursors[i+1:]...)
			return
		}
	}
}
