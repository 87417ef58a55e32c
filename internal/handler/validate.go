package handler

// Request validation mirrors the per-endpoint schemas: each function checks
// one DTO and returns structured field errors for the 400 envelope.

import "regexp"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validEmail(s string) bool { return emailPattern.MatchString(s) }

func (req *signUpReq) validate() []FieldError {
	var errs []FieldError
	if len(req.Name) < 2 {
		errs = append(errs, FieldError{"name", "Name must be at least 2 characters"})
	}
	if !validEmail(req.Email) {
		errs = append(errs, FieldError{"email", "Invalid email format"})
	}
	if len(req.Password) < 6 {
		errs = append(errs, FieldError{"password", "Password must be at least 6 characters"})
	}
	return errs
}

func (req *loginReq) validate() []FieldError {
	var errs []FieldError
	if !validEmail(req.Email) {
		errs = append(errs, FieldError{"email", "Invalid email format"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{"password", "Password is required"})
	}
	return errs
}

func (req *forgotPasswordReq) validate() []FieldError {
	if !validEmail(req.Email) {
		return []FieldError{{"email", "Invalid email format"}}
	}
	return nil
}

func (req *resetPasswordReq) validate() []FieldError {
	var errs []FieldError
	if req.Token == "" {
		errs = append(errs, FieldError{"token", "Reset token is required"})
	}
	if len(req.Password) < 6 {
		errs = append(errs, FieldError{"password", "Password must be at least 6 characters"})
	}
	return errs
}

func (req *verifyEmailReq) validate() []FieldError {
	if req.Token == "" {
		return []FieldError{{"token", "Verification token is required"}}
	}
	return nil
}

func (req *phoneCodeReq) validate() []FieldError {
	if len(req.Phone) < 10 {
		return []FieldError{{"phone", "Phone number must be at least 10 digits"}}
	}
	return nil
}

func (req *verifyPhoneReq) validate() []FieldError {
	var errs []FieldError
	if len(req.Phone) < 10 {
		errs = append(errs, FieldError{"phone", "Phone number must be at least 10 digits"})
	}
	if len(req.Code) < 4 {
		errs = append(errs, FieldError{"code", "Verification code must be at least 4 digits"})
	}
	return errs
}
