// Package marketplace ties the catalog to live profile data: template
// values, previews, community enrichment and the apply flow.
package marketplace

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"xdao.co/gridstore/cache"
	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/schema"
)

const (
	defaultFanOut         = 8
	defaultConfirmTimeout = 15 * time.Minute
)

type Options struct {
	Catalog  *catalog.Catalog
	Schema   *schema.Client
	Resolver *resolver.Resolver
	Logger   *zap.Logger

	// Profiles caches LSP3 summaries by "network/address". Layouts caches
	// fetched grids by raw pointer value. Nil caches are created.
	Profiles *cache.Cache[*schema.ProfileSummary]
	Layouts  *cache.Cache[*LayoutEntry]

	// FanOut bounds concurrent profile lookups in community enrichment.
	FanOut int

	// ConfirmTimeout bounds how long an applied write blocks another apply
	// of the same value to the same profile. A transaction still unmined
	// after it is treated as dropped. Default 15m.
	ConfirmTimeout time.Duration
}

type Service struct {
	catalog  *catalog.Catalog
	schema   *schema.Client
	resolver *resolver.Resolver
	log      *zap.Logger
	profiles *cache.Cache[*schema.ProfileSummary]
	layouts  *cache.Cache[*LayoutEntry]
	fanOut   int

	mu      sync.Mutex
	pending map[string]*schema.PendingWrite

	confirmTimeout time.Duration
	watchCtx       context.Context
	stopWatch      context.CancelFunc
	watchers       sync.WaitGroup
}

func New(opts Options) *Service {
	s := &Service{
		catalog:  opts.Catalog,
		schema:   opts.Schema,
		resolver: opts.Resolver,
		log:      opts.Logger,
		profiles: opts.Profiles,
		layouts:  opts.Layouts,
		fanOut:   opts.FanOut,
		pending:  make(map[string]*schema.PendingWrite),

		confirmTimeout: opts.ConfirmTimeout,
	}
	s.watchCtx, s.stopWatch = context.WithCancel(context.Background())
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.profiles == nil {
		s.profiles = cache.New(func(p *schema.ProfileSummary) bool { return p != nil })
	}
	if s.layouts == nil {
		s.layouts = cache.New(func(e *LayoutEntry) bool { return e != nil })
	}
	if s.fanOut <= 0 {
		s.fanOut = defaultFanOut
	}
	if s.confirmTimeout <= 0 {
		s.confirmTimeout = defaultConfirmTimeout
	}
	return s
}

// Close stops watching submitted writes and waits for the watchers to exit.
func (s *Service) Close() {
	s.stopWatch()
	s.watchers.Wait()
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

func (s *Service) Resolver() *resolver.Resolver { return s.resolver }

// Template looks up a catalog entry, or builds the synthetic template for a
// "search-<address>" id.
func (s *Service) Template(id string) (catalog.Template, error) {
	if t, ok := s.catalog.ByID(id); ok {
		return t, nil
	}
	if addr, ok := strings.CutPrefix(id, searchPrefix); ok && common.IsHexAddress(addr) {
		return searchTemplate(common.HexToAddress(addr), nil), nil
	}
	return catalog.Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

// Value returns the encoded grid value for t: the raw catalog value, the
// encoded locator and hash, or the live value on the template's profile.
func (s *Service) Value(ctx context.Context, t catalog.Template, n chain.Network) ([]byte, error) {
	switch t.Source.Kind() {
	case catalog.SourceRaw, catalog.SourceLocator:
		return t.Source.Value()
	case catalog.SourceProfile:
		addr := common.HexToAddress(t.Source.Profile)
		raw, err := s.schema.ReadRaw(ctx, addr, schema.GridLayoutKey, n)
		if err != nil {
			return nil, fmt.Errorf("marketplace: reading grid of %s: %w", addr.Hex(), err)
		}
		if raw == nil {
			return nil, fmt.Errorf("%w: %s has no grid", ErrNoPointerConfigured, addr.Hex())
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoPointerConfigured, t.ID)
	}
}

// ParseAddress validates a user-supplied profile address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func profileKey(addr common.Address, n chain.Network) string {
	return n.Name + "/" + strings.ToLower(addr.Hex())
}

func valueKey(value []byte) string { return hex.EncodeToString(value) }

// summary resolves LSP3 metadata through the profile cache. Misses are not
// cached so a profile that later publishes metadata is picked up.
func (s *Service) summary(ctx context.Context, addr common.Address, n chain.Network) (*schema.ProfileSummary, error) {
	return s.profiles.Do(ctx, profileKey(addr, n), func(ctx context.Context) (*schema.ProfileSummary, error) {
		return s.schema.ReadProfileSummary(ctx, addr, n), nil
	})
}

// imageURL makes a locator fetchable, or returns "".
func (s *Service) imageURL(locator string) string {
	if locator == "" {
		return ""
	}
	return s.resolver.URL(locator)
}
