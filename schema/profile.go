package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ProfileSummary is the part of LSP3 profile metadata shown next to a grid.
// Image fields hold locators (usually ipfs://), not gateway URLs.
type ProfileSummary struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	ProfileImage    string   `json:"profileImage,omitempty"`
	BackgroundImage string   `json:"backgroundImage,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Links           []Link   `json:"links,omitempty"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type lsp3Image struct {
	URL string `json:"url"`
}

type lsp3Profile struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Tags            []string    `json:"tags"`
	Links           []Link      `json:"links"`
	ProfileImage    []lsp3Image `json:"profileImage"`
	BackgroundImage []lsp3Image `json:"backgroundImage"`
}

var errNoProfile = errors.New("schema: document has no LSP3Profile")

// ParseProfileMetadata extracts a summary from an LSP3 metadata document.
// The first entry of each image list is used.
func ParseProfileMetadata(data []byte) (*ProfileSummary, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: LSP3 metadata: %w", err)
	}
	raw, ok := doc[ProfileMetadataName]
	if !ok {
		return nil, errNoProfile
	}
	var p lsp3Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("schema: LSP3 metadata: %w", err)
	}

	s := &ProfileSummary{
		Name:            p.Name,
		Description:     p.Description,
		ProfileImage:    firstImage(p.ProfileImage),
		BackgroundImage: firstImage(p.BackgroundImage),
		Links:           p.Links,
	}
	for _, tag := range p.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			s.Tags = append(s.Tags, tag)
		}
	}
	return s, nil
}

func firstImage(imgs []lsp3Image) string {
	if len(imgs) == 0 {
		return ""
	}
	return imgs[0].URL
}
