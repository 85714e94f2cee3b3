package schema

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/resolver"
)

var profile = common.HexToAddress("0x26e7Da1968cfC61FB8aB2Aad039b5A083b9De21e")

type fakeBackend struct {
	mu      sync.Mutex
	data    map[common.Hash][]byte
	err     error
	reads   int
	receipt *types.Receipt
	waitErr error
}

func (f *fakeBackend) GetData(_ context.Context, _ chain.Network, _ common.Address, key common.Hash) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[key], nil
}

func (f *fakeBackend) WaitReceipt(_ context.Context, _ chain.Network, tx common.Hash) (*types.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx, BlockNumber: big.NewInt(7)}, nil
}

type fakeLedger struct {
	to   common.Address
	data []byte
	err  error
}

func (l *fakeLedger) Submit(_ context.Context, _ chain.Network, to common.Address, data []byte) (common.Hash, error) {
	if l.err != nil {
		return common.Hash{}, l.err
	}
	l.to, l.data = to, data
	return common.HexToHash("0xabc"), nil
}

func TestKeys(t *testing.T) {
	assert.Equal(t, GridLayoutKey, KeyFromName("LSP28TheGrid"))
	assert.Equal(t, ProfileMetadataKey, KeyFromName("LSP3Profile"))
	assert.Equal(t, "LSP28TheGrid", KeyName(GridLayoutKey))
	assert.Equal(t, common.HexToHash("0x01").Hex(), KeyName(common.HexToHash("0x01")))
}

func TestReadRaw_EmptyIsUnset(t *testing.T) {
	b := &fakeBackend{data: map[common.Hash][]byte{GridLayoutKey: {}}}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)

	raw, err := c.ReadRaw(context.Background(), profile, GridLayoutKey, chain.Mainnet)
	require.NoError(t, err)
	assert.Nil(t, raw)

	p, err := c.ReadDecodedPointer(context.Background(), profile, GridLayoutKey, chain.Mainnet)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestReadDecodedPointer(t *testing.T) {
	hash := pointer.Keccak256([]byte("grid"))
	value, err := pointer.Encode("ipfs://QmGrid", hash)
	require.NoError(t, err)

	b := &fakeBackend{data: map[common.Hash][]byte{
		GridLayoutKey:      value,
		ProfileMetadataKey: {0x00, 0x00},
	}}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)
	ctx := context.Background()

	p, err := c.ReadDecodedPointer(ctx, profile, GridLayoutKey, chain.Mainnet)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ipfs://QmGrid", p.Locator)
	assert.Equal(t, hash, p.Hash)

	_, err = c.ReadDecodedPointer(ctx, profile, ProfileMetadataKey, chain.Mainnet)
	assert.ErrorIs(t, err, pointer.ErrMalformedPointerValue)
}

func TestLookup_CollapsesFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := &fakeBackend{err: chain.ErrNoStore}
	c := NewClient(b, resolver.New(resolver.Config{}), zap.New(core))
	ctx := context.Background()

	assert.Nil(t, c.LookupRaw(ctx, profile, GridLayoutKey, chain.Mainnet))
	assert.Nil(t, c.LookupPointer(ctx, profile, GridLayoutKey, chain.Mainnet))
	assert.Equal(t, 2, logs.FilterMessage("lookup failed").Len())

	b.err = errors.New("rpc down")
	_, err := c.ReadRaw(ctx, profile, GridLayoutKey, chain.Mainnet)
	assert.Error(t, err, "Read* must surface failures")
}

func TestReadProfileSummary(t *testing.T) {
	doc := `{"LSP3Profile":{"name":"feindura","description":"builder","tags":["dev"," ","lukso"],
		"links":[{"title":"site","url":"https://example.com"}],
		"profileImage":[{"url":"ipfs://QmAvatar","width":640},{"url":"ipfs://QmSmall"}],
		"backgroundImage":[{"url":"ipfs://QmBg"}]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/ipfs/") {
		case "QmProfile":
			_, _ = w.Write([]byte(doc))
		case "QmBroken":
			_, _ = w.Write([]byte(`{"other":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	res := resolver.New(resolver.Config{Gateway: srv.URL + "/ipfs/"})
	ctx := context.Background()

	value := func(loc string) []byte {
		b, err := pointer.Encode(loc, nil)
		require.NoError(t, err)
		return b
	}

	c := NewClient(&fakeBackend{data: map[common.Hash][]byte{ProfileMetadataKey: value("ipfs://QmProfile")}}, res, nil)
	s := c.ReadProfileSummary(ctx, profile, chain.Mainnet)
	require.NotNil(t, s)
	assert.Equal(t, &ProfileSummary{
		Name:            "feindura",
		Description:     "builder",
		ProfileImage:    "ipfs://QmAvatar",
		BackgroundImage: "ipfs://QmBg",
		Tags:            []string{"dev", "lukso"},
		Links:           []Link{{Title: "site", URL: "https://example.com"}},
	}, s)

	for _, loc := range []string{"ipfs://QmBroken", "ipfs://QmMissing"} {
		c := NewClient(&fakeBackend{data: map[common.Hash][]byte{ProfileMetadataKey: value(loc)}}, res, nil)
		assert.Nil(t, c.ReadProfileSummary(ctx, profile, chain.Mainnet), loc)
	}

	unset := NewClient(&fakeBackend{}, res, nil)
	assert.Nil(t, unset.ReadProfileSummary(ctx, profile, chain.Mainnet))
}

func TestWritePointer_PassesValueVerbatim(t *testing.T) {
	raw, err := pointer.ParseHex("0x00006f357c6a0020ed1d0f7d0000000000000000000000000000000000000000000000000000927a697066733a2f2f516d")
	require.NoError(t, err)

	b := &fakeBackend{}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)
	ledger := &fakeLedger{}

	pw, err := c.WritePointer(context.Background(), profile, GridLayoutKey, raw, chain.Testnet, ledger)
	require.NoError(t, err)
	assert.Equal(t, profile, ledger.to)

	key, value, err := chain.UnpackSetData(ledger.data)
	require.NoError(t, err)
	assert.Equal(t, GridLayoutKey, key)
	assert.Equal(t, raw, value)

	r, err := pw.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r.BlockNumber.Uint64())
	assert.Contains(t, pw.ExplorerURL(), "testnet")
}

func TestWritePointer_FailuresSurface(t *testing.T) {
	c := NewClient(&fakeBackend{}, resolver.New(resolver.Config{}), nil)
	ctx := context.Background()

	_, err := c.WritePointer(ctx, profile, GridLayoutKey, nil, chain.Mainnet, &fakeLedger{})
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, StageEncode, werr.Stage)
	assert.ErrorIs(t, err, ErrEmptyValue)

	rejected := errors.New("user rejected the request")
	_, err = c.WritePointer(ctx, profile, GridLayoutKey, []byte{0, 0, 0, 0}, chain.Mainnet, &fakeLedger{err: rejected})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, rejected)
	assert.Contains(t, err.Error(), "user rejected the request")
}

func TestPendingWrite_RevertIsFinal(t *testing.T) {
	b := &fakeBackend{waitErr: chain.ErrReverted}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)
	pw, err := c.WritePointer(context.Background(), profile, GridLayoutKey, []byte{0, 0, 0, 0}, chain.Mainnet, &fakeLedger{})
	require.NoError(t, err)

	_, err = pw.Wait(context.Background())
	assert.ErrorIs(t, err, chain.ErrReverted)
	assert.ErrorIs(t, err, ErrWriteFailed)

	assert.True(t, pw.Settled())
	b.waitErr = nil
	_, again := pw.Wait(context.Background())
	assert.Equal(t, err, again, "outcome must be sticky")
}

func TestPendingWrite_CancelledWaitIsNotFinal(t *testing.T) {
	b := &fakeBackend{}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)
	pw, err := c.WritePointer(context.Background(), profile, GridLayoutKey, []byte{0, 0, 0, 0}, chain.Mainnet, &fakeLedger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.waitErr = context.Canceled
	_, err = pw.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrWriteFailed)
	assert.False(t, pw.Settled())

	b.waitErr = nil
	_, err = pw.Wait(context.Background())
	assert.NoError(t, err)
}

func TestPendingWrite_ReceiptPollFailureIsNotFinal(t *testing.T) {
	b := &fakeBackend{}
	c := NewClient(b, resolver.New(resolver.Config{}), nil)
	pw, err := c.WritePointer(context.Background(), profile, GridLayoutKey, []byte{0, 0, 0, 0}, chain.Mainnet, &fakeLedger{})
	require.NoError(t, err)

	b.waitErr = errors.New("chain: receipt 0xabc: 502 bad gateway")
	_, err = pw.Wait(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWriteFailed, "a failed poll says nothing about the transaction")
	assert.False(t, pw.Settled())

	b.waitErr = nil
	r, err := pw.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r.BlockNumber.Uint64())
	assert.True(t, pw.Settled())
}
