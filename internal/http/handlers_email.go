package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/mail"
)

// The same answer is given whether or not the address has an account.
const forgotPasswordMessage = "If an account exists for that email, password reset instructions have been sent"

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.resets.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, core.ErrValidation) {
			writeError(w, r, err)
			return
		}
		// Only known addresses reach the mailer, so a failure here must look
		// like success to the caller.
		s.logMailFailure(r, "Failed to send reset instructions", err)
	}
	NewJSONResponse().Message(forgotPasswordMessage).Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.resets.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Password reset successful").Write(w)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var form mail.ContactForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	form.Name = sanitizeInput(form.Name)
	form.Email = sanitizeInput(form.Email)
	form.Subject = sanitizeInput(form.Subject)
	form.Message = sanitizeInput(form.Message)
	if err := form.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if s.contactInbox == "" {
		ErrorResponse(http.StatusServiceUnavailable, "Contact form is not configured").Write(w)
		return
	}

	msg, err := mail.ContactMessage(s.contactInbox, form)
	if err == nil {
		err = s.mailer.Send(r.Context(), msg)
	}
	if err != nil {
		s.logMailFailure(r, "Failed to send contact email", err)
		ErrorResponse(http.StatusInternalServerError, "Failed to send email").Write(w)
		return
	}
	NewJSONResponse().Message("Email sent successfully!").Write(w)
}

func (s *Server) logMailFailure(r *http.Request, msg string, err error) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentMail)
	logger.ErrorContext(r.Context(), msg,
		log.FieldErrorType, log.ErrorTypeNetwork,
		log.FieldOperation, log.OpSend,
		log.FieldError, err.Error())
}
