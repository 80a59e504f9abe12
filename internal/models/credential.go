package models

import "gorm.io/gorm"

// Credential is an API key/secret pair. It never changes after creation.
type Credential struct {
	gorm.Model
	Key    string `gorm:"uniqueIndex;not null"`
	Secret string `gorm:"not null"`
}
