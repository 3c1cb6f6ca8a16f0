package tdbx

// TxnOp is a function that operates on a transaction.
// This is the callback type for View, Update, RunTxn and Sub.
type TxnOp func(txn *Txn) error

// View executes a read-only transaction.
// The transaction is always released when fn returns.
func (e *Env) View(fn TxnOp) error {
	return e.RunTxn(TxnReadOnly, fn)
}

// Update executes a read-write transaction.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error or panics.
func (e *Env) Update(fn TxnOp) error {
	return e.RunTxn(TxnReadWrite, fn)
}

// RunTxn runs a transaction with the given flags.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error or panics.
func (e *Env) RunTxn(flags uint, fn TxnOp) error {
	txn, err := e.BeginTxn(nil, flags)
	if err != nil {
		return err
	}
	return run(txn, fn)
}

// Sub runs fn in a nested transaction of txn. The child's writes are folded
// into txn when fn returns nil and discarded otherwise.
func (txn *Txn) Sub(fn TxnOp) error {
	child, err := txn.BeginNested()
	if err != nil {
		return err
	}
	return run(child, fn)
}

func run(txn *Txn, fn TxnOp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			txn.Abort()
			panic(r)
		}
	}()
	if err = fn(txn); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}
