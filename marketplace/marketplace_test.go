package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/chain/chaintest"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const gridDoc = `{"LSP28TheGrid":[{"title":"Main","gridColumns":2,"grid":[
	{"width":1,"height":1,"type":"IMAGES","properties":{"type":"grid","images":["ipfs://QmImg"]}},
	{"width":2,"height":1,"type":"IFRAME","properties":{"src":"https://www.youtube.com/embed/abc123?si=x"}},
	{"width":1,"height":1,"type":"TEXT","properties":{"title":"hi","backgroundImage":"https://cdn.example/bg.png"}}
]},{"title":"Second","gridColumns":3,"grid":[]}]}`

var (
	alice = common.HexToAddress("0x26e7Da1968cfC61FB8aB2Aad039b5A083b9De21e")
	bob   = common.HexToAddress("0x7d817ef6adb23a038bbae352d4e838cabb6454d0")
	carol = common.HexToAddress("0xcEcD1798420A533c9627770e052f49aa127c3B3B")
)

type gateway struct {
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/ipfs/")
	g.mu.Lock()
	g.hits[name]++
	body, ok := g.files[name]
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (g *gateway) Hits(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[name]
}

type env struct {
	node  *chaintest.Node
	store *chain.RPCStore
	gw    *gateway
	svc   *Service
	net   chain.Network
}

func newEnv(t *testing.T, catalogYAML string) *env {
	t.Helper()
	node := chaintest.NewNode(t, chain.Testnet.ChainID)
	store := chain.NewRPCStore(chain.Config{
		RPC:         map[string]string{chain.Testnet.Name: node.URL},
		RateLimit:   1000,
		ReceiptPoll: 5 * time.Millisecond,
	}, nil)
	t.Cleanup(store.Close)

	gw := &gateway{files: map[string]string{"QmGrid": gridDoc}, hits: map[string]int{}}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	res := resolver.New(resolver.Config{Gateway: srv.URL + "/ipfs/"})

	cat, err := catalog.Parse([]byte(catalogYAML))
	require.NoError(t, err)

	svc := New(Options{
		Catalog:  cat,
		Schema:   schema.NewClient(store, res, nil),
		Resolver: res,
		FanOut:   2,
	})
	t.Cleanup(svc.Close)
	return &env{node: node, store: store, gw: gw, svc: svc, net: chain.Testnet}
}

func (e *env) setProfile(t *testing.T, addr common.Address, doc string) {
	t.Helper()
	name := "Qm" + strings.ToLower(addr.Hex()[2:10])
	e.gw.mu.Lock()
	e.gw.files[name] = doc
	e.gw.mu.Unlock()
	v, err := pointer.Encode("ipfs://"+name, nil)
	require.NoError(t, err)
	e.node.SetData(addr, schema.ProfileMetadataKey, v)
}

func hashHex(s string) string { return fmt.Sprintf("0x%x", pointer.Keccak256([]byte(s))) }

func catalogYAML(hash string) string {
	return fmt.Sprintf(`
categories:
  - {id: creative, name: Creative}
  - {id: community, name: Community}
templates:
  - id: located
    name: Located
    category: creative
    source: {locator: "ipfs://QmGrid", hash: %q}
  - id: bob
    name: Bob's Grid
    category: community
    profile_address: %q
    source: {raw_value: "0x00000000697066733a2f2f516d47726964"}
  - id: carol
    name: Carol's Grid
    category: community
    source: {profile: %q}
  - id: alice-live
    name: Alice
    category: community
    source: {profile: %q}
`, hash, bob.Hex(), carol.Hex(), alice.Hex())
}

func TestPreview_VerifiedLayoutAndCells(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	tpl, err := e.svc.Template("located")
	require.NoError(t, err)

	pv, err := e.svc.Preview(ctx, tpl, e.net)
	require.NoError(t, err)
	assert.Equal(t, IntegrityVerified, pv.Integrity)
	assert.Equal(t, 2, pv.Layout.Len())
	require.True(t, pv.HasSection)
	assert.Equal(t, "Main", pv.Section.Title)
	require.Len(t, pv.Cells, 3)

	assert.True(t, strings.HasSuffix(pv.Cells[0].ImageURL, "/ipfs/QmImg"), pv.Cells[0].ImageURL)
	assert.Equal(t, grid.KindFrame, pv.Cells[1].Kind)
	assert.Equal(t, "https://img.youtube.com/vi/abc123/hqdefault.jpg", pv.Cells[1].Thumbnail)
	assert.Equal(t, "https://cdn.example/bg.png", pv.Cells[2].ImageURL)

	_, err = e.svc.Preview(ctx, tpl, e.net)
	require.NoError(t, err)
	assert.Equal(t, 1, e.gw.Hits("QmGrid"), "layouts are cached by value")
}

func TestPreview_HashMismatchIsReported(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex("something else")))
	tpl, _ := e.svc.Template("located")

	pv, err := e.svc.Preview(context.Background(), tpl, e.net)
	require.NoError(t, err)
	assert.Equal(t, IntegrityMismatch, pv.Integrity)

	unverified, _ := e.svc.Template("bob")
	pv, err = e.svc.Preview(context.Background(), unverified, e.net)
	require.NoError(t, err)
	assert.Equal(t, IntegrityUnverified, pv.Integrity)
}

func TestPreview_FetchFailureSurfaces(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	e.gw.mu.Lock()
	delete(e.gw.files, "QmGrid")
	e.gw.mu.Unlock()

	tpl, _ := e.svc.Template("located")
	_, err := e.svc.Preview(context.Background(), tpl, e.net)
	assert.ErrorIs(t, err, resolver.ErrFetchFailed)
}

func TestValue_LiveProfileSource(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	tpl, _ := e.svc.Template("carol")

	_, err := e.svc.Value(ctx, tpl, e.net)
	assert.ErrorIs(t, err, chain.ErrNoStore, "carol has no store yet")

	e.node.SetData(carol, schema.ProfileMetadataKey, nil)
	_, err = e.svc.Value(ctx, tpl, e.net)
	assert.ErrorIs(t, err, ErrNoPointerConfigured)

	want, err := pointer.Encode("ipfs://QmGrid", nil)
	require.NoError(t, err)
	e.node.SetData(carol, schema.GridLayoutKey, want)
	got, err := e.svc.Value(ctx, tpl, e.net)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	pv, err := e.svc.Preview(ctx, tpl, e.net)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmGrid", pv.Pointer.Locator)

	_, err = e.svc.Value(ctx, catalog.Template{ID: "empty"}, e.net)
	assert.ErrorIs(t, err, ErrNoPointerConfigured)
}

func TestProfileAndSearch(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	e.setProfile(t, alice, `{"LSP3Profile":{"name":"alice","tags":["dev"],
		"profileImage":[{"url":"ipfs://QmAvatar"}],"backgroundImage":[{"url":"https://cdn.example/bg.png"}]}}`)

	p, err := e.svc.Profile(ctx, alice, e.net)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Summary.Name)
	assert.True(t, strings.HasSuffix(p.ProfileImageURL, "/ipfs/QmAvatar"))
	assert.Equal(t, "https://cdn.example/bg.png", p.BackgroundImageURL)

	tpl, prof, err := e.svc.SearchProfile(ctx, "  "+alice.Hex()+" ", e.net)
	require.NoError(t, err)
	assert.Equal(t, "search-"+alice.Hex(), tpl.ID)
	assert.Equal(t, "alice", tpl.Name)
	assert.Equal(t, "alice", tpl.Author)
	assert.Equal(t, catalog.SourceProfile, tpl.Source.Kind())
	assert.Equal(t, []string{"dev"}, tpl.Tags)
	assert.Equal(t, alice, prof.Address)

	byID, err := e.svc.Template(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Hex(), byID.Source.Profile)

	_, _, err = e.svc.SearchProfile(ctx, "0x1234", e.net)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, _, err = e.svc.SearchProfile(ctx, bob.Hex(), e.net)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = e.svc.Template("nope")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestProfile_MissesAreNotCached(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()

	_, err := e.svc.Profile(ctx, alice, e.net)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	e.setProfile(t, alice, `{"LSP3Profile":{"name":"later"}}`)
	p, err := e.svc.Profile(ctx, alice, e.net)
	require.NoError(t, err)
	assert.Equal(t, "later", p.Summary.Name)
}

func TestCommunityTagsAndTagFilter(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	e.setProfile(t, bob, `{"LSP3Profile":{"name":"bob","tags":["music","Art"]}}`)
	e.setProfile(t, alice, `{"LSP3Profile":{"name":"alice","tags":["dev","art"," "]}}`)

	tags, byAddr, err := e.svc.CommunityTags(ctx, e.net)
	require.NoError(t, err)
	assert.Equal(t, []string{"Art", "art", "dev", "music"}, tags)
	assert.Equal(t, []string{"music", "Art"}, byAddr[strings.ToLower(bob.Hex())])
	_, hasCarol := byAddr[strings.ToLower(carol.Hex())]
	assert.False(t, hasCarol, "unreadable profiles are skipped")

	got, err := e.svc.Templates(ctx, e.net, catalog.Query{Tag: "MUSIC"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].ID)

	all, err := e.svc.Templates(ctx, e.net, catalog.Query{Category: catalog.CategoryCommunity})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCommunityTags_CancelledContext(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.svc.CommunityTags(ctx, e.net)
	assert.ErrorIs(t, err, context.Canceled)
}

func signedApply(t *testing.T, plan *ApplyPlan) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := plan.Profile
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(plan.Network.ChainID),
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       200000,
		To:        &to,
		Data:      plan.Calldata,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(plan.Network.ChainID)), key)
	require.NoError(t, err)
	return signed
}

func TestApplyFlow(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	old, err := pointer.Encode("ipfs://QmOld", nil)
	require.NoError(t, err)
	e.node.SetData(alice, schema.GridLayoutKey, old)

	tpl, _ := e.svc.Template("bob")
	plan, err := e.svc.PrepareApply(ctx, tpl, alice, e.net)
	require.NoError(t, err)
	assert.True(t, plan.Overwrites())
	assert.False(t, plan.Unchanged())
	assert.Equal(t, old, plan.Existing)

	key, value, err := chain.UnpackSetData(plan.Calldata)
	require.NoError(t, err)
	assert.Equal(t, schema.GridLayoutKey, key)
	assert.Equal(t, plan.Value, value)
	assert.Equal(t, "0x00000000697066733a2f2f516d47726964", "0x"+fmt.Sprintf("%x", value))

	tx := signedApply(t, plan)
	ledger := chain.Presigned{Store: e.store, Tx: tx}
	e.node.DelayReceipt(tx.Hash(), 1000)
	pw, err := e.svc.Apply(ctx, plan, ledger)
	require.NoError(t, err)

	_, err = e.svc.Apply(ctx, plan, ledger)
	assert.ErrorIs(t, err, ErrWritePending)
	e.node.DelayReceipt(tx.Hash(), 0)

	receipt, err := pw.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, plan.Value, e.node.Data(alice, schema.GridLayoutKey))

	again, err := e.svc.PrepareApply(ctx, tpl, alice, e.net)
	require.NoError(t, err)
	assert.True(t, again.Unchanged())

	_, err = e.svc.Apply(ctx, plan, ledger)
	assert.NoError(t, err, "a settled write frees the slot")
}

func TestApply_SlotFreedWithoutWaiting(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	e.node.SetData(alice, schema.ProfileMetadataKey, nil)
	tpl, _ := e.svc.Template("located")
	plan, err := e.svc.PrepareApply(ctx, tpl, alice, e.net)
	require.NoError(t, err)

	reverted := signedApply(t, plan)
	e.node.DelayReceipt(reverted.Hash(), 1000)
	e.node.Revert(reverted.Hash())
	_, err = e.svc.Apply(ctx, plan, chain.Presigned{Store: e.store, Tx: reverted})
	require.NoError(t, err)

	retry := chain.Presigned{Store: e.store, Tx: signedApply(t, plan)}
	_, err = e.svc.Apply(ctx, plan, retry)
	assert.ErrorIs(t, err, ErrWritePending)

	e.node.DelayReceipt(reverted.Hash(), 0)
	assert.Eventually(t, func() bool {
		_, err := e.svc.Apply(ctx, plan, retry)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "a reverted write frees the slot")

	confirmed := chain.Presigned{Store: e.store, Tx: signedApply(t, plan)}
	assert.Eventually(t, func() bool {
		_, err := e.svc.Apply(ctx, plan, confirmed)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "a confirmed write frees the slot")
}

func TestApply_UnminedWriteExpires(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	e.svc.confirmTimeout = 50 * time.Millisecond
	ctx := context.Background()
	e.node.SetData(alice, schema.ProfileMetadataKey, nil)
	tpl, _ := e.svc.Template("located")
	plan, err := e.svc.PrepareApply(ctx, tpl, alice, e.net)
	require.NoError(t, err)

	dropped := signedApply(t, plan)
	e.node.DelayReceipt(dropped.Hash(), 1<<30)
	pw, err := e.svc.Apply(ctx, plan, chain.Presigned{Store: e.store, Tx: dropped})
	require.NoError(t, err)

	next := chain.Presigned{Store: e.store, Tx: signedApply(t, plan)}
	assert.Eventually(t, func() bool {
		_, err := e.svc.Apply(ctx, plan, next)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, pw.Settled(), "expiry releases the slot without inventing an outcome")
}

type rejectingLedger struct{ calls int }

func (l *rejectingLedger) Submit(context.Context, chain.Network, common.Address, []byte) (common.Hash, error) {
	l.calls++
	return common.Hash{}, errors.New("user rejected the request")
}

func TestApply_FailureFreesSlot(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()
	tpl, _ := e.svc.Template("located")
	plan, err := e.svc.PrepareApply(ctx, tpl, alice, e.net)
	require.NoError(t, err)
	assert.False(t, plan.Overwrites(), "alice has no store, so nothing is overwritten")

	l := &rejectingLedger{}
	_, err = e.svc.Apply(ctx, plan, l)
	assert.ErrorIs(t, err, schema.ErrWriteFailed)
	_, err = e.svc.Apply(ctx, plan, l)
	assert.ErrorIs(t, err, schema.ErrWriteFailed)
	assert.Equal(t, 2, l.calls, "failures are returned, never retried")
}

func TestPrepareApply_NoPointer(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	e.node.SetData(alice, schema.ProfileMetadataKey, nil)
	tpl, _ := e.svc.Template("alice-live")
	_, err := e.svc.PrepareApply(context.Background(), tpl, carol, e.net)
	assert.ErrorIs(t, err, ErrNoPointerConfigured)
}

func TestProfileGrid(t *testing.T) {
	e := newEnv(t, catalogYAML(hashHex(gridDoc)))
	ctx := context.Background()

	_, _, err := e.svc.ProfileGrid(ctx, alice, e.net)
	assert.ErrorIs(t, err, chain.ErrNoStore)

	e.node.SetData(alice, schema.ProfileMetadataKey, nil)
	raw, entry, err := e.svc.ProfileGrid(ctx, alice, e.net)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Nil(t, entry)

	e.node.SetData(alice, schema.GridLayoutKey, []byte{0x01, 0x02})
	_, _, err = e.svc.ProfileGrid(ctx, alice, e.net)
	assert.ErrorIs(t, err, pointer.ErrMalformedPointerValue)

	v, _ := pointer.Encode("ipfs://QmGrid", pointer.Keccak256([]byte(gridDoc)))
	e.node.SetData(alice, schema.GridLayoutKey, v)
	raw, entry, err = e.svc.ProfileGrid(ctx, alice, e.net)
	require.NoError(t, err)
	assert.Equal(t, v, raw)
	assert.Equal(t, IntegrityVerified, entry.Integrity)
	assert.Equal(t, 2, entry.Layout.Len())
}
