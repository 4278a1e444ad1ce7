package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/txxdx/devcamper-api/internal/model"
)

const (
	maxNameLen        = 50
	minPasswordLen    = 6
	maxPasswordLength = 72 // bcrypt ignores everything past 72 bytes
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: please add a name", ErrValidation)
	case len([]rune(name)) > maxNameLen:
		return fmt.Errorf("%w: name can not be more than %d characters", ErrValidation, maxNameLen)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: please add an email", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: please add a valid email", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return fmt.Errorf("%w: please add a password", ErrValidation)
	case len(password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLength)
	}
	return nil
}

// normalizeRole defaults an empty role to user and refuses admin.
func normalizeRole(role string) (string, error) {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case "":
		return model.RoleUser, nil
	case model.RoleUser, model.RolePublisher:
		return r, nil
	default:
		return "", fmt.Errorf("%w: role must be one of %s, %s", ErrValidation, model.RoleUser, model.RolePublisher)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
