package marketplace

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/schema"
)

const searchPrefix = "search-"

// Profile is an LSP3 summary with its images made fetchable.
type Profile struct {
	Address            common.Address
	Network            chain.Network
	Summary            schema.ProfileSummary
	ProfileImageURL    string
	BackgroundImageURL string
}

// Profile resolves the LSP3 summary of addr. Profiles without readable
// metadata yield ErrProfileNotFound.
func (s *Service) Profile(ctx context.Context, addr common.Address, n chain.Network) (*Profile, error) {
	sum, err := s.summary(ctx, addr, n)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, ErrProfileNotFound
	}
	return &Profile{
		Address:            addr,
		Network:            n,
		Summary:            *sum,
		ProfileImageURL:    s.imageURL(sum.ProfileImage),
		BackgroundImageURL: s.imageURL(sum.BackgroundImage),
	}, nil
}

// CommunityTags looks up the LSP3 tags of every community profile in the
// catalog, concurrently. Profiles that cannot be read are skipped. It
// returns the merged tag list and the tags per lower-case address.
func (s *Service) CommunityTags(ctx context.Context, n chain.Network) ([]string, map[string][]string, error) {
	addrs := make(map[common.Address]struct{})
	for _, t := range s.catalog.Community() {
		if a, ok := t.Address(); ok {
			addrs[a] = struct{}{}
		}
	}

	type result struct {
		addr common.Address
		tags []string
	}
	results := make(chan result, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for a := range addrs {
		a := a
		g.Go(func() error {
			sum, err := s.summary(gctx, a, n)
			if err != nil {
				// Only the caller's context ends the fan-out.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Debug("community profile skipped", zap.String("profile", a.Hex()), zap.Error(err))
				return nil
			}
			if sum != nil {
				results <- result{addr: a, tags: sum.Tags}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	close(results)

	byAddr := make(map[string][]string, len(addrs))
	lists := make([][]string, 0, len(addrs))
	for r := range results {
		byAddr[strings.ToLower(r.addr.Hex())] = r.tags
		lists = append(lists, r.tags)
	}
	return catalog.UniqueTags(lists...), byAddr, nil
}

// Templates filters the catalog. Tag queries are answered against the live
// tags of community profiles.
func (s *Service) Templates(ctx context.Context, n chain.Network, q catalog.Query) ([]catalog.Template, error) {
	all := s.catalog.All()
	if strings.TrimSpace(q.Tag) == "" {
		return catalog.Filter(all, q), nil
	}
	_, byAddr, err := s.CommunityTags(ctx, n)
	if err != nil {
		return nil, err
	}
	for i, t := range all {
		if a, ok := t.Address(); ok {
			all[i].Tags = catalog.UniqueTags(t.Tags, byAddr[strings.ToLower(a.Hex())])
		}
	}
	return catalog.Filter(all, q), nil
}

// SearchProfile validates addr, resolves its profile and builds the
// synthetic community template that copies the profile's live grid.
func (s *Service) SearchProfile(ctx context.Context, addr string, n chain.Network) (catalog.Template, *Profile, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return catalog.Template{}, nil, err
	}
	p, err := s.Profile(ctx, a, n)
	if err != nil {
		return catalog.Template{}, nil, err
	}
	return searchTemplate(a, &p.Summary), p, nil
}

func searchTemplate(addr common.Address, sum *schema.ProfileSummary) catalog.Template {
	t := catalog.Template{
		ID:             searchPrefix + addr.Hex(),
		Name:           "Universal Profile",
		Description:    "Grid from searched Universal Profile",
		Author:         addr.Hex()[:8] + "...",
		Category:       catalog.CategoryCommunity,
		Preview:        "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
		Grid:           catalog.Grid{Columns: 3, Rows: 3, Gap: "12px"},
		ProfileAddress: addr.Hex(),
		Source:         catalog.Source{Profile: addr.Hex()},
	}
	if sum != nil {
		if sum.Name != "" {
			t.Name, t.Author = sum.Name, sum.Name
		}
		t.Tags = append([]string(nil), sum.Tags...)
	}
	return t
}
