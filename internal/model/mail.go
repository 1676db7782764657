package model

// Attachment is a file carried inside a mail container.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// MailContents is what the .msg decoder hands back to the normalizer.
type MailContents struct {
	Subject     string
	Body        string // plain text body, may be empty
	HTMLBody    string
	Attachments []Attachment
}
