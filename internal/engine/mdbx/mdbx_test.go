//go:build cgo

package mdbx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/tdbx/internal/engine"
	"github.com/Giulio2002/tdbx/internal/engine/enginetest"
)

func TestConformance(t *testing.T) {
	enginetest.Run(t, driver{})
}

func TestReservedNameRejected(t *testing.T) {
	env, err := driver{}.Open(enginetest.Config(t))
	require.NoError(t, err)
	defer env.Close()

	txn, err := env.BeginTxn(nil, false)
	require.NoError(t, err)
	defer txn.Abort()

	_, err = txn.OpenDB(DefaultTable, true)
	require.ErrorIs(t, err, engine.ErrInvalid)

	names, err := txn.ListDBs()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMaxDBs(t *testing.T) {
	cfg := enginetest.Config(t)
	cfg.MaxDBs = 2
	env, err := driver{}.Open(cfg)
	require.NoError(t, err)
	defer env.Close()

	txn, err := env.BeginTxn(nil, false)
	require.NoError(t, err)
	defer txn.Abort()

	_, err = txn.OpenDB("a", true)
	require.NoError(t, err)
	_, err = txn.OpenDB("b", true)
	require.NoError(t, err)
	_, err = txn.OpenDB("c", true)
	require.ErrorIs(t, err, engine.ErrDBsFull)
}
