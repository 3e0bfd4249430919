package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"

	DefaultCurrency = "USD"
)

// User is the account document stored in the users collection.
// Sub-documents are optional in storage; Normalize fills them.
type User struct {
	ID           string        `bson:"_id,omitempty" json:"id"`
	Username     string        `bson:"username" json:"username"`
	PasswordHash string        `bson:"passwordHash" json:"-"`
	Role         string        `bson:"role" json:"role"`
	Status       *Status       `bson:"status,omitempty" json:"status,omitempty"`
	Verification *Verification `bson:"verification,omitempty" json:"verification,omitempty"`
	Bank         *Bank         `bson:"bank,omitempty" json:"bank,omitempty"`
	Balance      *Balance      `bson:"balance,omitempty" json:"balance,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

type Status struct {
	Active bool `bson:"active" json:"active"`
}

type Verification struct {
	Status      string    `bson:"status" json:"status"`
	SubmittedAt time.Time `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
}

type Bank struct {
	Name          string `bson:"name,omitempty" json:"name,omitempty"`
	AccountNumber string `bson:"accountNumber,omitempty" json:"accountNumber,omitempty"`
	AccountHolder string `bson:"accountHolder,omitempty" json:"accountHolder,omitempty"`
}

type Balance struct {
	Available float64 `bson:"available" json:"available"`
	Pending   float64 `bson:"pending" json:"pending"`
	Currency  string  `bson:"currency" json:"currency"`
}

// SessionUser is the request-scoped view of an authenticated account.
// Every field is populated; it never carries the password hash.
type SessionUser struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	Role               string  `json:"role"`
	Balance            Balance `json:"balance"`
	Bank               Bank    `json:"bank"`
	VerificationStatus string  `json:"verificationStatus"`
	Active             bool    `json:"active"`
}

// Normalize fills missing sub-documents with their defaults in place.
func (u *User) Normalize() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == nil {
		u.Status = &Status{Active: true}
	}
	if u.Verification == nil {
		u.Verification = &Verification{}
	}
	if u.Verification.Status == "" {
		u.Verification.Status = VerificationUnverified
	}
	if u.Bank == nil {
		u.Bank = &Bank{}
	}
	if u.Balance == nil {
		u.Balance = &Balance{}
	}
	if u.Balance.Currency == "" {
		u.Balance.Currency = DefaultCurrency
	}
}

// Session returns the normalized projection of u. u itself is not modified.
func (u User) Session() *SessionUser {
	c := u
	c.Status, c.Verification, c.Bank, c.Balance = copyStatus(u.Status), copyVerification(u.Verification), copyBank(u.Bank), copyBalance(u.Balance)
	c.Normalize()
	return &SessionUser{
		ID:                 c.ID,
		Username:           c.Username,
		Role:               c.Role,
		Balance:            *c.Balance,
		Bank:               *c.Bank,
		VerificationStatus: c.Verification.Status,
		Active:             c.Status.Active,
	}
}

// HasRole reports whether the user's role is one of roles.
func (s *SessionUser) HasRole(roles ...string) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

func copyStatus(s *Status) *Status {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyVerification(v *Verification) *Verification {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyBank(b *Bank) *Bank {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func copyBalance(b *Balance) *Balance {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
