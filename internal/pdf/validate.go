package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
)

// Credentials are the passwords for an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Info is what structural validation learns about a document.
type Info struct {
	PageCount int
	Version   string
	Encrypted bool
}

// Validate parses data with pdfcpu in relaxed mode and returns basic document
// info. Structural failures wrap extract.ErrInvalidDocument.
func Validate(data []byte, creds *Credentials) (*Info, error) {
	if err := Sniff(data); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if creds != nil {
		conf.UserPW = creds.UserPassword
		conf.OwnerPW = creds.OwnerPassword
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		if isEncryptionError(err) {
			return nil, fmt.Errorf("%w: encrypted and the supplied password does not open it", extract.ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", extract.ErrInvalidDocument, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrInvalidDocument, err)
	}

	info := &Info{
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}
	return info, nil
}

// isEncryptionError matches pdfcpu's password and decryption failures, which
// are plain errors without sentinels.
func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypted") ||
		strings.Contains(msg, "password") ||
		strings.Contains(msg, "decrypt")
}
