package grid

import "encoding/json"

// Payload is the kind-specific content of a Cell. The concrete type is
// determined by Kind; unrecognised kinds carry Unknown.
type Payload interface {
	Kind() Kind
	clone() Payload
}

type Text struct {
	Title           string `json:"title,omitempty"`
	TitleColor      string `json:"titleColor,omitempty"`
	Body            string `json:"text,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
	Link            string `json:"link,omitempty"`
}

// Images is an ordered image set. Mode is "grid" or "carousel".
type Images struct {
	Mode   string   `json:"type,omitempty"`
	Images []string `json:"images"`
}

type Frame struct {
	Src             string `json:"src"`
	Allow           string `json:"allow,omitempty"`
	Sandbox         string `json:"sandbox,omitempty"`
	AllowFullscreen bool   `json:"allowfullscreen,omitempty"`
	ReferrerPolicy  string `json:"referrerpolicy,omitempty"`

	// Embed is derived from Src and never serialized back into properties.
	Embed Embed `json:"-"`
}

// Widget is a third-party (Elfsight) widget reference.
type Widget struct {
	ID string `json:"id"`
}

// XPost is an X post or timeline. Mode is "post" or "timeline".
type XPost struct {
	Mode       string `json:"type"`
	Username   string `json:"username"`
	ID         string `json:"id,omitempty"`
	Theme      string `json:"theme,omitempty"`
	Language   string `json:"language,omitempty"`
	DoNotTrack bool   `json:"donottrack,omitempty"`
}

type InstagramPost struct {
	Mode string `json:"type"`
	ID   string `json:"id"`
}

type QRCode struct {
	Data string `json:"data"`
}

// Unknown preserves a cell whose type this package does not know.
type Unknown struct {
	RawKind string
}

func (Text) Kind() Kind          { return KindText }
func (Images) Kind() Kind        { return KindImages }
func (Frame) Kind() Kind         { return KindFrame }
func (Widget) Kind() Kind        { return KindWidget }
func (XPost) Kind() Kind         { return KindX }
func (InstagramPost) Kind() Kind { return KindInstagram }
func (QRCode) Kind() Kind        { return KindQRCode }
func (Unknown) Kind() Kind       { return KindUnknown }

func (p Text) clone() Payload { return p }
func (p Images) clone() Payload {
	p.Images = append([]string(nil), p.Images...)
	return p
}
func (p Frame) clone() Payload         { return p }
func (p Widget) clone() Payload        { return p }
func (p XPost) clone() Payload         { return p }
func (p InstagramPost) clone() Payload { return p }
func (p QRCode) clone() Payload        { return p }
func (p Unknown) clone() Payload       { return p }

// decodePayload reads props into the payload type for k. Fields that do not
// match their expected JSON types are left zero rather than failing the cell.
func decodePayload(k Kind, rawKind string, props json.RawMessage) Payload {
	switch k {
	case KindText:
		return decodeInto[Text](props)
	case KindImages:
		return decodeInto[Images](props)
	case KindFrame:
		f := decodeInto[Frame](props)
		f.Embed = ClassifyEmbed(f.Src)
		return f
	case KindWidget:
		return decodeInto[Widget](props)
	case KindX:
		return decodeInto[XPost](props)
	case KindInstagram:
		return decodeInto[InstagramPost](props)
	case KindQRCode:
		return decodeInto[QRCode](props)
	default:
		return Unknown{RawKind: rawKind}
	}
}

func decodeInto[T Payload](props json.RawMessage) T {
	var v T
	if len(props) > 0 {
		_ = json.Unmarshal(props, &v)
	}
	return v
}
