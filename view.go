package tdbx

import "bytes"

// View is a value read without decoding or copying. Its bytes belong to the
// engine and are only valid while the transaction that produced it is live
// and, for a write transaction, until the next write. Bytes enforces both.
type View struct {
	data []byte
	txn  *Txn
	gen  uint64
}

func (txn *Txn) view(data []byte) View {
	return View{data: data, txn: txn, gen: txn.gen}
}

// Bytes returns the viewed bytes. It fails with ErrUseAfterFinish once the
// transaction ended and ErrStaleView once it wrote again. The slice must not
// be modified.
func (v View) Bytes() ([]byte, error) {
	if v.txn == nil {
		return nil, nil
	}
	if !v.txn.alive() {
		return nil, NewError(ErrUseAfterFinish)
	}
	if v.txn.gen != v.gen {
		return nil, NewError(ErrStaleView)
	}
	return v.data, nil
}

// Copy returns an owned copy of the viewed bytes.
func (v View) Copy() ([]byte, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// Len returns the length of the viewed value.
func (v View) Len() int {
	return len(v.data)
}
