package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted form of an account
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	IsVerified   bool      `bun:"is_verified,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// Complaint is the persisted form of a complaint. UserID is NULL for
// anonymous complaints.
type Complaint struct {
	bun.BaseModel `bun:"table:complaints,alias:c"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	Title       string     `bun:"title,notnull"`
	Description string     `bun:"description,notnull"`
	Location    string     `bun:"location,notnull"`
	Urgency     string     `bun:"urgency,notnull"`
	ImageURL    string     `bun:"image_url,notnull"`
	Status      string     `bun:"status,notnull"`
	Anonymous   bool       `bun:"anonymous,notnull"`
	UserID      *uuid.UUID `bun:"user_id,type:uuid"`
	Owner       *User      `bun:"rel:belongs-to,join:user_id=id"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}
