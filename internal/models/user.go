package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	FirstName    string    `bun:"first_name,notnull,default:''" json:"first_name"`
	LastName     string    `bun:"last_name,notnull,default:''" json:"last_name"`
	IsStaff      bool      `bun:"is_staff,notnull,default:false" json:"is_staff"`
	DateJoined   time.Time `bun:"date_joined,notnull,default:current_timestamp" json:"date_joined"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=5"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProfilePatch is a profile update. A full update must set email and
// password.
type ProfilePatch struct {
	Email     *string `json:"email" validate:"required,email"`
	Password  *string `json:"password" validate:"required,min=5"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type UserView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

func NewUserView(u *User) UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsStaff:   u.IsStaff,
	}
}
