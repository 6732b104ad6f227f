package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fintrack/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errMalformedBody = &core.ValidationError{Msg: "request body must be a JSON object"}

// decodeJSON reads a single JSON object from r into dst. Unknown fields are
// ignored; the browser client sends extra keys such as userId.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &core.ValidationError{Msg: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return errMalformedBody
	}
	if dec.More() {
		return errMalformedBody
	}
	return nil
}

// transactionRequest is the wire shape of a ledger write. Amount arrives as
// a JSON number from the browser, but a string is accepted too.
type transactionRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

func (t transactionRequest) entryInput() (core.EntryInput, error) {
	amount, err := amountText(t.Amount)
	if err != nil {
		return core.EntryInput{}, err
	}
	return core.EntryInput{
		Description: sanitizeInput(t.Description),
		Amount:      amount,
		Type:        t.Type,
		Category:    sanitizeInput(t.Category),
		Date:        t.Date,
	}, nil
}

func amountText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", core.ErrInvalidAmount
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", core.ErrInvalidAmount
	}
	return n.String(), nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// validate reports every missing field together.
func (r resetPasswordRequest) validate() error {
	missing := core.FieldErrors{}
	if strings.TrimSpace(r.Token) == "" {
		missing["token"] = "Token is required"
	}
	if r.NewPassword == "" {
		missing["newPassword"] = "New password is required"
	}
	if len(missing) > 0 {
		return missing
	}
	return nil
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
