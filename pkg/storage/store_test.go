package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/positions"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTest(t)
	addr := common.HexToAddress("0x01")

	_, ok, err := s.Credentials(addr)
	require.NoError(t, err)
	assert.False(t, ok)

	creds := params.Credentials{APIKey: "k", Secret: "s", Passphrase: "p"}
	require.NoError(t, s.SaveCredentials(addr, creds))

	got, ok, err := s.Credentials(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, creds, got)

	// Independent per address.
	_, ok, err = s.Credentials(common.HexToAddress("0x02"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteCredentials(addr))
	_, ok, err = s.Credentials(addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTradeCacheRoundTrip(t *testing.T) {
	s := openTest(t)
	addr := common.HexToAddress("0x01")

	trades := []positions.Trade{
		{Asset: "a", Side: "BUY", Price: "0.4", Size: "10"},
		{Asset: "a", Side: "SELL", Price: "0.6", Size: "4"},
	}
	require.NoError(t, s.SaveTrades(addr, trades))

	got, ok, err := s.Trades(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, trades, got)

	// Overwrite replaces, not appends.
	require.NoError(t, s.SaveTrades(addr, trades[:1]))
	got, _, err = s.Trades(addr)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNotes(t *testing.T) {
	s := openTest(t)

	require.Error(t, s.SaveNote(Note{Body: "missing slug"}))

	require.NoError(t, s.SaveNote(Note{Slug: "b-market", Body: "fade the favorite", UpdatedAt: 2}))
	require.NoError(t, s.SaveNote(Note{Slug: "a-market", Body: "thin book", UpdatedAt: 1}))

	n, ok, err := s.NoteBySlug("a-market")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "thin book", n.Body)

	all, err := s.Notes()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-market", all[0].Slug)
	assert.Equal(t, "b-market", all[1].Slug)
}
