package models

import "time"

type Agent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	Username    string    `json:"username" gorm:"uniqueIndex"`
	Password    string    `json:"-"` // bcrypt 哈希
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"` // admin, agent
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Agent        Agent  `json:"agent"`
}
