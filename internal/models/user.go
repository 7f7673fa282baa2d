package models

import (
	"net/url"
	"time"
)

// User is the profile document kept alongside the auth account.
type User struct {
	UID         string    `json:"uid" firestore:"uid" gorm:"primaryKey;size:128"`
	Email       string    `json:"email" firestore:"email" gorm:"index"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	PhotoURL    string    `json:"photoURL" firestore:"photoURL"`
	Bio         string    `json:"bio" firestore:"bio"`
	Skills      []string  `json:"skills" firestore:"skills" gorm:"serializer:json"`
	Reputation  int       `json:"reputation" firestore:"reputation"`
	Bookmarks   []string  `json:"bookmarks" firestore:"bookmarks" gorm:"serializer:json"`
	Online      bool      `json:"online" firestore:"online"`
	LastSeen    time.Time `json:"lastSeen" firestore:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// HasBookmark reports whether postID is in the user's bookmarks.
func (u *User) HasBookmark(postID string) bool {
	for _, id := range u.Bookmarks {
		if id == postID {
			return true
		}
	}
	return false
}

// Author returns the snapshot used to sign posts and comments.
func (u *User) Author() Author {
	return Author{ID: u.UID, Name: u.DisplayName, PhotoURL: u.PhotoURL}
}

// DefaultPhotoURL is the generated avatar given to accounts without a photo.
func DefaultPhotoURL(displayName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(displayName) + "&background=random"
}

// ProfileUpdate carries the editable profile fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
	Bio         *string
	Skills      []string
}

// SignUpRequest defines the request body for creating an account
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"min=6"`
	DisplayName string `json:"displayName" validate:"trimmin=2"`
}

// SignInRequest defines the request body for signing in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest defines the request body for editing the caller's profile.
// Skills arrive as a comma separated string, the way the profile form submits them.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"omitempty,trimmin=2"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
	Bio         string `json:"bio" validate:"max=500"`
	Skills      string `json:"skills"`
}
