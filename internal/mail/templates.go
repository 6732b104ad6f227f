package mail

import (
	"bytes"
	"html/template"
	netmail "net/mail"
	"strings"

	"fintrack/internal/core"
)

var (
	resetTmpl = template.Must(template.New("reset").Parse(`<h3>Password Reset Request</h3>
<p>You requested a password reset. Click the link below to reset your password:</p>
<p><a href="{{.Link}}">Reset Password</a></p>
<p>This link will expire in {{.ValidFor}}.</p>
<p>If you didn't request this, please ignore this email.</p>
`))

	confirmTmpl = template.Must(template.New("confirm").Parse(`<h3>Password Reset Successful</h3>
<p>Your password has been successfully reset.</p>
<p>If you didn't make this change, please contact support immediately.</p>
`))

	contactTmpl = template.Must(template.New("contact").Parse(`<h3>New Contact Form Submission</h3>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
`))
)

// ResetLink joins base and token into the link mailed to the user.
func ResetLink(base, token string) string {
	return strings.TrimRight(base, "/") + "/" + token
}

// ResetRequest is the message carrying a one-time reset link.
func ResetRequest(to, link, validFor string) (Message, error) {
	body, err := render(resetTmpl, struct{ Link, ValidFor string }{link, validFor})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password Reset Request", HTML: body}, nil
}

// ResetConfirmation tells the account owner the password changed.
func ResetConfirmation(to string) (Message, error) {
	body, err := render(confirmTmpl, nil)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password Reset Successful", HTML: body}, nil
}

// ContactForm is a visitor submission relayed to the site inbox.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate requires every field and a well-formed visitor address. Missing
// fields are reported together.
func (f ContactForm) Validate() error {
	missing := core.FieldErrors{}
	for field, v := range map[string]string{
		"name":    f.Name,
		"email":   f.Email,
		"subject": f.Subject,
		"message": f.Message,
	} {
		if strings.TrimSpace(v) == "" {
			missing[field] = strings.ToUpper(field[:1]) + field[1:] + " is required"
		}
	}
	if len(missing) > 0 {
		return missing
	}
	addr, err := netmail.ParseAddress(strings.TrimSpace(f.Email))
	if err != nil || addr.Address != strings.TrimSpace(f.Email) || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return core.ErrInvalidEmail
	}
	return nil
}

// ContactMessage renders form for inbox. User text is HTML-escaped and the
// visitor's address becomes Reply-To.
func ContactMessage(inbox string, form ContactForm) (Message, error) {
	body, err := render(contactTmpl, form)
	if err != nil {
		return Message{}, err
	}
	subject := strings.Join(strings.Fields(form.Subject), " ")
	return Message{
		To:      inbox,
		ReplyTo: form.Email,
		Subject: "Contact Form: " + subject,
		HTML:    body,
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
