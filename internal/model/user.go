package model

import "time"

// Roles a user may hold.  Admin cannot be chosen at registration.
const (
    RoleUser      = "user"
    RolePublisher = "publisher"
    RoleAdmin     = "admin"
)

// User represents an application user record as stored by the credential
// store.  It has no json tags; handlers render PublicUser.
//
// Fields:
//  ID                     – store identifier (MySQL id as decimal string or Mongo ObjectID hex).
//  Name                   – display name.
//  Email                  – unique, lower-cased email address.
//  PasswordHash           – bcrypt hash of the password.
//  Role                   – user, publisher or admin.
//  ResetPasswordTokenHash – SHA‑256 hex digest of the pending reset token (empty when none).
//  ResetPasswordExpire    – expiry of the pending reset token (nil when none).
//  CreatedAt              – timestamp of creation.
//  UpdatedAt              – timestamp of last update.
type User struct {
    ID                     string
    Name                   string
    Email                  string
    PasswordHash           string
    Role                   string
    ResetPasswordTokenHash string
    ResetPasswordExpire    *time.Time
    CreatedAt              time.Time
    UpdatedAt              time.Time
}

// PublicUser is the representation returned to clients.
type PublicUser struct {
    ID        string    `json:"id"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    Role      string    `json:"role"`
    CreatedAt time.Time `json:"createdAt"`
}

// Public strips credential material from u.
func (u User) Public() PublicUser {
    return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// HasPendingReset reports whether a reset token is stored and still valid at now.
func (u User) HasPendingReset(now time.Time) bool {
    return u.ResetPasswordTokenHash != "" && u.ResetPasswordExpire != nil && now.Before(*u.ResetPasswordExpire)
}
