// Package mailmsg reads Outlook .msg files.
//
// A .msg file is a compound file binary (CFB) container. Message properties are
// stored as streams named __substg1.0_PPPPTTTT where PPPP is the property id and
// TTTT the property type, both hex. Attachments live in storages named
// __attach_version1.0_#NNNNNNNN holding the same kind of property streams.
package mailmsg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"gemini-extract/internal/model"
)

const (
	streamPrefix     = "__substg1.0_"
	attachmentPrefix = "__attach_version1.0_"
)

// Property ids this decoder understands.
const (
	propSubject        = 0x0037
	propBody           = 0x1000
	propHTML           = 0x1013
	propAttachData     = 0x3701
	propAttachFilename = 0x3704
	propAttachLongName = 0x3707
	propAttachMIMETag  = 0x370E
)

// Property types.
const (
	typeString8 = 0x001E
	typeUnicode = 0x001F
	typeBinary  = 0x0102
)

var ErrNotMailContainer = errors.New("not an outlook message container")

type property struct {
	id  uint16
	typ uint16
}

// parseStreamName splits "__substg1.0_1000001F" into its id and type.
func parseStreamName(name string) (property, bool) {
	if !strings.HasPrefix(name, streamPrefix) {
		return property{}, false
	}
	tag := name[len(streamPrefix):]
	if len(tag) != 8 {
		return property{}, false
	}
	var id, typ uint16
	if _, err := fmt.Sscanf(tag, "%04X%04X", &id, &typ); err != nil {
		return property{}, false
	}
	return property{id: id, typ: typ}, true
}

// Decoder implements normalizer.MailDecoder.
type Decoder struct{}

func NewDecoder() *Decoder { return &Decoder{} }

type attachment struct {
	shortName string
	longName  string
	mimeType  string
	data      []byte
}

func (a *attachment) name() string {
	if a.longName != "" {
		return a.longName
	}
	return a.shortName
}

// Decode reads subject, plain body, HTML body and attachments from data.
// Attachments come back in storage order.
func (d *Decoder) Decode(data []byte) (*model.MailContents, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMailContainer, err)
	}

	contents := &model.MailContents{}
	attachments := map[string]*attachment{}
	sawProperty := false

	for entry, err := doc.Next(); err != io.EOF; entry, err = doc.Next() {
		if err != nil {
			return nil, fmt.Errorf("read compound file: %w", err)
		}

		prop, ok := parseStreamName(entry.Name)
		if !ok {
			continue
		}

		var storage string
		switch len(entry.Path) {
		case 0:
		case 1:
			storage = entry.Path[0]
			if !strings.HasPrefix(storage, attachmentPrefix) {
				continue
			}
		default:
			// embedded messages and recipient tables are not needed
			continue
		}

		raw, err := readAll(entry)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", entry.Name, err)
		}
		sawProperty = true

		if storage == "" {
			applyMessageProperty(contents, prop, raw)
			continue
		}
		att, ok := attachments[storage]
		if !ok {
			att = &attachment{}
			attachments[storage] = att
		}
		applyAttachmentProperty(att, prop, raw)
	}

	if !sawProperty {
		return nil, ErrNotMailContainer
	}

	names := make([]string, 0, len(attachments))
	for name := range attachments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		att := attachments[name]
		contents.Attachments = append(contents.Attachments, model.Attachment{
			Name:     att.name(),
			MIMEType: att.mimeType,
			Data:     att.data,
		})
	}
	return contents, nil
}

func readAll(entry *mscfb.File) ([]byte, error) {
	if entry.Size <= 0 {
		return nil, nil
	}
	buf := make([]byte, entry.Size)
	if _, err := io.ReadFull(entry, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func applyMessageProperty(c *model.MailContents, prop property, raw []byte) {
	switch prop.id {
	case propSubject:
		c.Subject = decodeString(prop.typ, raw)
	case propBody:
		c.Body = decodeString(prop.typ, raw)
	case propHTML:
		// PR_HTML is usually binary holding the UTF-8 html document
		c.HTMLBody = decodeString(prop.typ, raw)
	}
}

func applyAttachmentProperty(a *attachment, prop property, raw []byte) {
	switch prop.id {
	case propAttachData:
		if prop.typ == typeBinary {
			a.data = raw
		}
	case propAttachFilename:
		a.shortName = decodeString(prop.typ, raw)
	case propAttachLongName:
		a.longName = decodeString(prop.typ, raw)
	case propAttachMIMETag:
		a.mimeType = decodeString(prop.typ, raw)
	}
}

// decodeString converts a string-valued property to UTF-8 and drops the
// trailing NUL terminators Outlook leaves in place.
func decodeString(typ uint16, raw []byte) string {
	var s string
	switch typ {
	case typeUnicode:
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return ""
		}
		s = string(out)
	case typeString8:
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return ""
		}
		s = string(out)
	default:
		s = strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return strings.TrimRight(s, "\x00")
}
