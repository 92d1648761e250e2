package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Username  string    `gorm:"column:username;uniqueIndex;size:64" json:"username"`
	Email     string    `gorm:"column:email;uniqueIndex;size:255" json:"email"`
	Password  string    `gorm:"column:password_hash" json:"-"`
	Role      string    `gorm:"column:role;default:user" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string { return "users" }
