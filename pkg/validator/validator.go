package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 8
	// bcrypt refuses longer input.
	passwordMaxLen = 72
	specialChars   = "!@#$%^&*"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

func ValidateRegister(username, email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < usernameMinLen {
		errs.Add("username", fmt.Sprintf("Username must be at least %d characters long", usernameMinLen))
	} else if len(username) > usernameMaxLen {
		errs.Add("username", fmt.Sprintf("Username must be at most %d characters", usernameMaxLen))
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, and underscores")
	}

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if !emailRegex.MatchString(email) {
		errs.Add("email", "Please enter a valid email address")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

// ValidateConfirmPassword is used by the web sign-up form.
func ValidateConfirmPassword(password, confirm string, errs ValidationErrors) {
	if confirm == "" {
		errs.Add("confirm_password", "Please confirm your password")
	} else if password != confirm {
		errs.Add("confirm_password", "Passwords do not match")
	}
}

func ValidateLogin(identifier, password string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(identifier) == "" {
		errs.Add("identifier", "Email or username is required")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateDream(content string, maxLen int) ValidationErrors {
	errs := make(ValidationErrors)

	content = strings.TrimSpace(content)
	if content == "" {
		errs.Add("content", "Dream content is required")
	} else if utf8.RuneCountInString(content) > maxLen {
		errs.Add("content", fmt.Sprintf("Dream must be at most %d characters", maxLen))
	}

	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if password == "" {
		errs.Add("password", "Password is required")
		return
	}
	if len(password) < passwordMinLen {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters long", passwordMinLen))
		return
	}
	if len(password) > passwordMaxLen {
		errs.Add("password", fmt.Sprintf("Password must be at most %d bytes", passwordMaxLen))
		return
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case strings.ContainsRune(specialChars, ch):
			hasSpecial = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}
	if !hasSpecial {
		missing = append(missing, "one special character ("+specialChars+")")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
