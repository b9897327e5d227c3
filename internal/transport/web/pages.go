package web

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
	"github.com/vedran77/dreamnest/pkg/validator"
)

const invalidCredentialsMessage = "Invalid email/username or password"

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", pageData{Title: "Home"})
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{Title: "Log in"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	identifier := r.PostFormValue("identifier")
	password := r.PostFormValue("password")
	data := pageData{Title: "Log in", Form: map[string]string{"identifier": identifier}}

	if errs := validator.ValidateLogin(identifier, password); errs.HasErrors() {
		data.Fields = errs
		h.render(w, r, http.StatusBadRequest, "login", data)
		return
	}

	resp, err := h.auth.Login(r.Context(), service.LoginInput{Identifier: identifier, Password: password})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.RecordLogin("failure")
			data.Error = invalidCredentialsMessage
			h.render(w, r, http.StatusUnauthorized, "login", data)
			return
		}
		h.metrics.RecordLogin("error")
		h.serverError(w, r, "login", err)
		return
	}

	h.metrics.RecordLogin("success")
	h.setCookie(w, resp.Token, resp.ExpiresAt)
	http.Redirect(w, r, h.landing, http.StatusSeeOther)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	input := service.RegisterInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	data := pageData{
		Title: "Register",
		Form:  map[string]string{"username": input.Username, "email": input.Email},
	}

	errs := validator.ValidateRegister(input.Username, input.Email, input.Password)
	validator.ValidateConfirmPassword(input.Password, r.PostFormValue("confirm_password"), errs)
	if errs.HasErrors() {
		data.Fields = errs
		h.render(w, r, http.StatusBadRequest, "register", data)
		return
	}

	resp, err := h.auth.Register(r.Context(), input)
	if err != nil {
		data.Fields = validator.ValidationErrors{}
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			data.Fields.Add("email", "Email is already registered")
		case errors.Is(err, service.ErrUsernameTaken):
			data.Fields.Add("username", "Username is already taken")
		case errors.Is(err, service.ErrUserExists):
			data.Error = "User already exists"
		default:
			h.serverError(w, r, "register", err)
			return
		}
		h.render(w, r, http.StatusConflict, "register", data)
		return
	}

	h.setCookie(w, resp.Token, resp.ExpiresAt)
	http.Redirect(w, r, h.landing, http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logout(r.Context(), session.FromContext(r.Context()))
	h.clearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) DreamsPage(w http.ResponseWriter, r *http.Request) {
	h.renderDreams(w, r, http.StatusOK, pageData{})
}

func (h *Handler) CreateDream(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	content := r.PostFormValue("content")

	if errs := validator.ValidateDream(content, domain.MaxDreamLength); errs.HasErrors() {
		h.renderDreams(w, r, http.StatusBadRequest, pageData{
			Fields: errs,
			Form:   map[string]string{"content": content},
		})
		return
	}

	if _, err := h.dreams.Create(r.Context(), sess.UserID, content); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.serverError(w, r, "create dream", err)
		return
	}
	h.metrics.DreamCreated()

	http.Redirect(w, r, "/dreams", http.StatusSeeOther)
}

func (h *Handler) DeleteDream(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	dreamID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.renderDreams(w, r, http.StatusBadRequest, pageData{Error: "Invalid dream"})
		return
	}

	if err := h.dreams.Delete(r.Context(), sess.UserID, dreamID); err != nil {
		switch {
		case errors.Is(err, service.ErrDreamNotFound):
			h.renderDreams(w, r, http.StatusNotFound, pageData{Error: "Dream not found"})
		case errors.Is(err, service.ErrNotDreamOwner):
			h.renderDreams(w, r, http.StatusForbidden, pageData{Error: "You can only delete your own dreams"})
		default:
			h.serverError(w, r, "delete dream", err)
		}
		return
	}
	h.metrics.DreamDeleted()

	http.Redirect(w, r, "/dreams", http.StatusSeeOther)
}

// renderDreams fills in the caller's dream list and renders the dreams page.
func (h *Handler) renderDreams(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	sess := session.FromContext(r.Context())

	dreams, err := h.dreams.List(r.Context(), sess.UserID, sess.UserID)
	if err != nil {
		h.serverError(w, r, "list dreams", err)
		return
	}

	data.Title = "My dreams"
	data.Dreams = dreams
	data.MaxLength = domain.MaxDreamLength
	h.render(w, r, status, "dreams", data)
}
