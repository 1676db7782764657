package model

import (
	"encoding/base64"
	"encoding/json"
)

// PartKind tags the variant held by a ContentPart.
type PartKind int

const (
	PartText PartKind = iota
	PartInlineBinary
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartInlineBinary:
		return "inline_binary"
	default:
		return "unknown"
	}
}

// ContentPart is one unit of model input: either text or an inline binary blob.
// Build it with TextPart or InlineBinaryPart and treat it as read-only afterwards.
type ContentPart struct {
	Kind     PartKind
	Text     string
	MIMEType string
	Data     []byte
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

func InlineBinaryPart(mimeType string, data []byte) ContentPart {
	return ContentPart{Kind: PartInlineBinary, MIMEType: mimeType, Data: data}
}

// Base64 returns the standard base64 encoding of the blob data.
func (p ContentPart) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wirePart struct {
	Text       *string     `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

// MarshalJSON renders the part in the generateContent wire shape:
// {"text": ...} or {"inlineData": {"mimeType": ..., "data": <base64>}}.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	var w wirePart
	switch p.Kind {
	case PartInlineBinary:
		w.InlineData = &inlineData{MIMEType: p.MIMEType, Data: p.Base64()}
	default:
		text := p.Text
		w.Text = &text
	}
	return json.Marshal(w)
}

// FileCategory classifies an upload for the tabular output policy.
type FileCategory string

const (
	CategoryNone  FileCategory = "none"
	CategoryMail  FileCategory = "mail"
	CategoryPDF   FileCategory = "pdf"
	CategoryImage FileCategory = "image"
	CategoryText  FileCategory = "text"

	// CategoryUnsupported labels uploads that are rejected.
	CategoryUnsupported FileCategory = "unsupported"
)

// ParsedInput is the normalized form of one /generate request.
type ParsedInput struct {
	Parts              []ContentPart
	WantsTabularOutput bool
	Category           FileCategory
}
