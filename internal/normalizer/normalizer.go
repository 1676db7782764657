// Package normalizer turns the fields of a /generate request into an ordered
// list of model content parts.
package normalizer

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/model"
)

// MailExtension marks Outlook mail containers.
const MailExtension = ".msg"

const mimePDF = "application/pdf"

// UploadedFile is the multipart `file` field, already read into memory.
type UploadedFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// MailDecoder extracts body and attachments from a mail container.
type MailDecoder interface {
	Decode(data []byte) (*model.MailContents, error)
}

type Normalizer struct {
	mail   MailDecoder
	policy TabularPolicy
	logger *zap.Logger
}

// New builds a Normalizer. A nil policy means DefaultTabularPolicy.
func New(mail MailDecoder, policy TabularPolicy, logger *zap.Logger) *Normalizer {
	if policy == nil {
		policy = DefaultTabularPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{mail: mail, policy: policy.clone(), logger: logger}
}

// Normalize builds the model input. The trimmed prompt, when present, always
// comes first. It fails with an unsupported file type or an empty request error.
func (n *Normalizer) Normalize(prompt string, file *UploadedFile) (*model.ParsedInput, error) {
	in := &model.ParsedInput{Category: model.CategoryNone}

	if p := strings.TrimSpace(prompt); p != "" {
		in.Parts = append(in.Parts, model.TextPart(p))
	}

	if file != nil {
		parts, category, err := n.fileParts(file)
		if err != nil {
			return nil, err
		}
		in.Parts = append(in.Parts, parts...)
		in.Category = category
		in.WantsTabularOutput = n.policy[category]
	}

	if len(in.Parts) == 0 {
		return nil, apperr.ErrEmptyRequest
	}
	return in, nil
}

// Classify reports the category Normalize assigns to file, also for files it
// goes on to reject.
func Classify(file *UploadedFile) model.FileCategory {
	if file == nil {
		return model.CategoryNone
	}
	category, _ := classify(file)
	return category
}

func classify(file *UploadedFile) (model.FileCategory, string) {
	if strings.HasSuffix(strings.ToLower(file.Name), MailExtension) {
		return model.CategoryMail, ""
	}

	contentType, mediaType := detectContentType(file)
	switch {
	case mediaType == mimePDF:
		return model.CategoryPDF, contentType
	case strings.HasPrefix(mediaType, "image/"):
		return model.CategoryImage, contentType
	case strings.HasPrefix(mediaType, "text/"):
		return model.CategoryText, contentType
	default:
		return model.CategoryUnsupported, contentType
	}
}

func (n *Normalizer) fileParts(file *UploadedFile) ([]model.ContentPart, model.FileCategory, error) {
	category, contentType := classify(file)
	switch category {
	case model.CategoryMail:
		parts, err := n.mailParts(file)
		return parts, category, err
	case model.CategoryPDF, model.CategoryImage:
		return []model.ContentPart{model.InlineBinaryPart(contentType, file.Data)}, category, nil
	case model.CategoryText:
		text := decodeUTF8(file.Data)
		if strings.TrimSpace(text) == "" {
			return nil, category, nil
		}
		return []model.ContentPart{model.TextPart(text)}, category, nil
	default:
		return nil, category, apperr.UnsupportedFileType(file.Name, contentType)
	}
}

func (n *Normalizer) mailParts(file *UploadedFile) ([]model.ContentPart, error) {
	if n.mail == nil {
		return nil, apperr.New(apperr.KindMailDecode, "mail container decoding is not configured")
	}
	contents, err := n.mail.Decode(file.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMailDecode, fmt.Sprintf("failed to decode mail container %q", file.Name), err)
	}

	var parts []model.ContentPart
	body := strings.TrimSpace(contents.Body)
	if body == "" && contents.HTMLBody != "" {
		body = HTMLToText(contents.HTMLBody)
	}
	if body != "" {
		parts = append(parts, model.TextPart(body))
	}

	pdfs := 0
	for _, att := range contents.Attachments {
		if strings.HasSuffix(strings.ToLower(att.Name), ".pdf") {
			parts = append(parts, model.InlineBinaryPart(mimePDF, att.Data))
			pdfs++
		}
	}

	n.logger.Debug("mail container decoded",
		zap.String("file", file.Name),
		zap.Int("body_len", len(body)),
		zap.Int("attachments", len(contents.Attachments)),
		zap.Int("pdf_attachments", pdfs),
	)
	return parts, nil
}

// detectContentType returns the content type to report upstream and its bare,
// lower-cased media type. Missing or generic types are guessed from the file
// extension, then from the leading bytes.
func detectContentType(file *UploadedFile) (string, string) {
	ct := strings.TrimSpace(file.MIMEType)
	if ct == "" || strings.EqualFold(ct, "application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Name))); byExt != "" {
			ct = byExt
		} else if len(file.Data) > 0 {
			ct = http.DetectContentType(file.Data)
		}
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(ct)
	}
	return ct, mediaType
}

func decodeUTF8(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return s
}
