package normalizer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/model"
)

type fakeMailDecoder struct {
	contents *model.MailContents
	err      error
	calls    int
}

func (f *fakeMailDecoder) Decode(data []byte) (*model.MailContents, error) {
	f.calls++
	return f.contents, f.err
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d}

func TestNormalize_PromptOnly(t *testing.T) {
	n := New(nil, nil, nil)

	for _, prompt := range []string{"hello", "  padded prompt \n", "多字节"} {
		in, err := n.Normalize(prompt, nil)
		require.NoError(t, err)
		require.Len(t, in.Parts, 1)
		assert.Equal(t, model.PartText, in.Parts[0].Kind)
		assert.Equal(t, model.TextPart(strings.TrimSpace(prompt)), in.Parts[0])
		assert.False(t, in.WantsTabularOutput)
		assert.Equal(t, model.CategoryNone, in.Category)
	}
}

func TestNormalize_EmptyRequest(t *testing.T) {
	n := New(nil, nil, nil)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := n.Normalize(prompt, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrEmptyRequest))
		assert.Equal(t, apperr.KindEmptyRequest, apperr.KindOf(err))
	}
}

func TestNormalize_BinaryFiles(t *testing.T) {
	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj")

	tests := []struct {
		name         string
		file         UploadedFile
		wantMIME     string
		wantCategory model.FileCategory
		wantTabular  bool
	}{
		{"pdf", UploadedFile{Name: "invoice.pdf", MIMEType: "application/pdf", Data: pdf}, "application/pdf", model.CategoryPDF, true},
		{"png", UploadedFile{Name: "scan.png", MIMEType: "image/png", Data: pngHeader}, "image/png", model.CategoryImage, false},
		{"jpeg", UploadedFile{Name: "photo.JPG", MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}, "image/jpeg", model.CategoryImage, false},
		{"pdf without mime type", UploadedFile{Name: "report.PDF", Data: pdf}, "application/pdf", model.CategoryPDF, true},
		{"png sent as octet-stream", UploadedFile{Name: "blob", MIMEType: "application/octet-stream", Data: pngHeader}, "image/png", model.CategoryImage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(nil, nil, nil)
			file := tt.file

			in, err := n.Normalize("", &file)
			require.NoError(t, err)
			require.Len(t, in.Parts, 1)

			part := in.Parts[0]
			assert.Equal(t, model.PartInlineBinary, part.Kind)
			assert.Equal(t, tt.wantMIME, part.MIMEType)
			assert.Equal(t, tt.wantCategory, in.Category)
			assert.Equal(t, tt.wantTabular, in.WantsTabularOutput)

			decoded, err := base64.StdEncoding.DecodeString(part.Base64())
			require.NoError(t, err)
			assert.Equal(t, tt.file.Data, decoded)
		})
	}
}

func TestNormalize_PromptPrecedesFile(t *testing.T) {
	n := New(nil, nil, nil)

	in, err := n.Normalize("extract the line items", &UploadedFile{Name: "a.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	require.Len(t, in.Parts, 2)
	assert.Equal(t, model.PartText, in.Parts[0].Kind)
	assert.Equal(t, "extract the line items", in.Parts[0].Text)
	assert.Equal(t, model.PartInlineBinary, in.Parts[1].Kind)

	b, err := json.Marshal(in.Parts)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":"extract the line items"},{"inlineData":{"mimeType":"application/pdf","data":"JVBERg=="}}]`, string(b))
}

func TestNormalize_TextFile(t *testing.T) {
	n := New(nil, nil, nil)

	in, err := n.Normalize("", &UploadedFile{Name: "notes.txt", MIMEType: "text/plain; charset=utf-8", Data: []byte("\ufeffline one\nline two")})
	require.NoError(t, err)
	require.Len(t, in.Parts, 1)
	assert.Equal(t, model.TextPart("line one\nline two"), in.Parts[0])
	assert.Equal(t, model.CategoryText, in.Category)
	assert.False(t, in.WantsTabularOutput)
}

func TestNormalize_TextFileInvalidUTF8(t *testing.T) {
	n := New(nil, nil, nil)

	in, err := n.Normalize("", &UploadedFile{Name: "latin1.txt", MIMEType: "text/plain", Data: []byte("caf\xe9")})
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD", in.Parts[0].Text)
}

func TestNormalize_BlankTextFileWithoutPrompt(t *testing.T) {
	n := New(nil, nil, nil)

	_, err := n.Normalize("", &UploadedFile{Name: "empty.txt", MIMEType: "text/plain", Data: []byte("  \n")})
	assert.True(t, errors.Is(err, apperr.ErrEmptyRequest))
}

func TestNormalize_UnsupportedFileType(t *testing.T) {
	n := New(nil, nil, nil)

	_, err := n.Normalize("describe", &UploadedFile{Name: "archive.zip", MIMEType: "application/zip", Data: []byte("PK\x03\x04")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnsupportedFileType, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "archive.zip")
	assert.Contains(t, err.Error(), "application/zip")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		file *UploadedFile
		want model.FileCategory
	}{
		{nil, model.CategoryNone},
		{&UploadedFile{Name: "Mail.MSG", Data: []byte("garbage")}, model.CategoryMail},
		{&UploadedFile{Name: "invoice.pdf"}, model.CategoryPDF},
		{&UploadedFile{Name: "blob", MIMEType: "application/octet-stream", Data: pngHeader}, model.CategoryImage},
		{&UploadedFile{Name: "notes.txt", MIMEType: "text/plain"}, model.CategoryText},
		{&UploadedFile{Name: "a.zip", MIMEType: "application/zip"}, model.CategoryUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.file))
	}
}

func TestNormalize_MailContainer(t *testing.T) {
	t.Run("plain body and pdf attachments", func(t *testing.T) {
		dec := &fakeMailDecoder{contents: &model.MailContents{
			Body:     "  Please see attached.  ",
			HTMLBody: "<p>ignored</p>",
			Attachments: []model.Attachment{
				{Name: "order.PDF", Data: []byte("%PDF-a")},
				{Name: "logo.png", Data: pngHeader},
				{Name: "terms.pdf", Data: []byte("%PDF-b")},
			},
		}}
		n := New(dec, nil, nil)

		in, err := n.Normalize("", &UploadedFile{Name: "Order.MSG", MIMEType: "application/vnd.ms-outlook", Data: []byte("cfb")})
		require.NoError(t, err)
		assert.Equal(t, 1, dec.calls)
		assert.Equal(t, model.CategoryMail, in.Category)
		assert.True(t, in.WantsTabularOutput)
		assert.Equal(t, []model.ContentPart{
			model.TextPart("Please see attached."),
			model.InlineBinaryPart("application/pdf", []byte("%PDF-a")),
			model.InlineBinaryPart("application/pdf", []byte("%PDF-b")),
		}, in.Parts)
	})

	t.Run("html only body is stripped", func(t *testing.T) {
		dec := &fakeMailDecoder{contents: &model.MailContents{
			HTMLBody: "<html><head><style>p {color: red}</style></head><body>\n<p>Total:\t<b>42</b></p>\n\n<br/><div>Thanks,&nbsp;Ann</div></body></html>",
		}}
		n := New(dec, nil, nil)

		in, err := n.Normalize("", &UploadedFile{Name: "mail.msg", Data: []byte("cfb")})
		require.NoError(t, err)
		require.Len(t, in.Parts, 1)

		text := in.Parts[0].Text
		assert.NotRegexp(t, `<[^>]*>`, text)
		assert.NotContains(t, text, "  ")
		assert.NotContains(t, text, "color: red")
		assert.Equal(t, "Total: 42 Thanks, Ann", text)
	})

	t.Run("decode failure", func(t *testing.T) {
		n := New(&fakeMailDecoder{err: errors.New("not a compound file")}, nil, nil)

		_, err := n.Normalize("prompt", &UploadedFile{Name: "bad.msg", Data: []byte("junk")})
		require.Error(t, err)
		assert.Equal(t, apperr.KindMailDecode, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "not a compound file")
	})

	t.Run("empty mail and no prompt", func(t *testing.T) {
		n := New(&fakeMailDecoder{contents: &model.MailContents{}}, nil, nil)

		_, err := n.Normalize("", &UploadedFile{Name: "empty.msg", Data: []byte("cfb")})
		assert.True(t, errors.Is(err, apperr.ErrEmptyRequest))
	})
}

func TestNormalize_PolicyTable(t *testing.T) {
	policy := PolicyFromConfig(map[string]bool{"image": true, "pdf": false})
	n := New(nil, policy, nil)

	in, err := n.Normalize("", &UploadedFile{Name: "a.png", MIMEType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	assert.True(t, in.WantsTabularOutput)

	in, err = n.Normalize("", &UploadedFile{Name: "a.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.False(t, in.WantsTabularOutput)

	// mutating the caller's map after construction has no effect
	policy[model.CategoryImage] = false
	in, err = n.Normalize("", &UploadedFile{Name: "a.png", MIMEType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	assert.True(t, in.WantsTabularOutput)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>a</p><p>b</p>", "a b"},
		{"plain   text\n\nhere", "plain text here"},
		{"<script>var x = '<b>';</script>visible", "visible"},
		{"<td>1</td><td>2</td>", "1 2"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTMLToText(tt.in))
	}
}
