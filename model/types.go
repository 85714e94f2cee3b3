package model

import (
	"encoding/json"

	"xdao.co/gridstore/catalog"
)

type Pointer struct {
	Method   string `json:"method"`
	Verified bool   `json:"verified"`
	Hash     string `json:"hash,omitempty"`
	Locator  string `json:"locator"`
	Scheme   string `json:"scheme"`
	URL      string `json:"url"`
}

type Embed struct {
	Provider  string `json:"provider"`
	VideoID   string `json:"videoId,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type Cell struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Kind       string          `json:"kind"`
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Properties json.RawMessage `json:"properties"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Embed      *Embed          `json:"embed,omitempty"`
}

type Section struct {
	Title      string `json:"title,omitempty"`
	Columns    int    `json:"columns"`
	Visibility string `json:"visibility"`
	Cells      []Cell `json:"cells"`
}

type Layout struct {
	Sections []Section `json:"sections"`
}

type Template struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Author         string       `json:"author"`
	Category       string       `json:"category"`
	Preview        string       `json:"preview"`
	Grid           catalog.Grid `json:"grid"`
	Featured       bool         `json:"featured"`
	ProfileLink    string       `json:"profileLink,omitempty"`
	ProfileAddress string       `json:"profileAddress,omitempty"`
	Tags           []string     `json:"tags"`
	Source         string       `json:"source"`
	RawValue       string       `json:"rawValue,omitempty"`
}

type TemplateList struct {
	Templates []Template `json:"templates"`
	Featured  []Template `json:"featured,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type Tags struct {
	Tags      []string            `json:"tags"`
	ByProfile map[string][]string `json:"byProfile"`
}

type Preview struct {
	Template           Template `json:"template"`
	Network            string   `json:"network"`
	Value              string   `json:"value"`
	Pointer            Pointer  `json:"pointer"`
	Integrity          string   `json:"integrity"`
	Sections           int      `json:"sections"`
	Section            *Section `json:"section,omitempty"`
	ProfileImageURL    string   `json:"profileImageUrl,omitempty"`
	BackgroundImageURL string   `json:"backgroundImageUrl,omitempty"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Profile struct {
	Address            string   `json:"address"`
	Network            string   `json:"network"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	ProfileImage       string   `json:"profileImage,omitempty"`
	ProfileImageURL    string   `json:"profileImageUrl,omitempty"`
	BackgroundImage    string   `json:"backgroundImage,omitempty"`
	BackgroundImageURL string   `json:"backgroundImageUrl,omitempty"`
	Tags               []string `json:"tags"`
	Links              []Link   `json:"links"`
	ExplorerURL        string   `json:"explorerUrl"`
}

// ProfileGrid is a profile's live grid. Value is empty and Pointer nil when
// the profile has no grid set.
type ProfileGrid struct {
	Address   string   `json:"address"`
	Network   string   `json:"network"`
	Value     string   `json:"value"`
	Pointer   *Pointer `json:"pointer,omitempty"`
	Integrity string   `json:"integrity,omitempty"`
	Layout    *Layout  `json:"layout,omitempty"`
}

type ApplyPlan struct {
	Template   string `json:"template"`
	Network    string `json:"network"`
	ChainID    int64  `json:"chainId"`
	Profile    string `json:"profile"`
	Key        string `json:"key"`
	Value      string `json:"value"`
	Calldata   string `json:"calldata"`
	Existing   string `json:"existing,omitempty"`
	Overwrites bool   `json:"overwrites"`
	Unchanged  bool   `json:"unchanged"`
}

type EncodeRequest struct {
	Locator string `json:"locator"`
	Hash    string `json:"hash,omitempty"`
}

type EncodeResponse struct {
	Value   string  `json:"value"`
	Pointer Pointer `json:"pointer"`
}

type DecodeRequest struct {
	Value string `json:"value"`
}
