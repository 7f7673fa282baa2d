package models

import "time"

// Comment is a reply owned by exactly one post.
type Comment struct {
	ID             string    `json:"id" firestore:"-" bson:"-" gorm:"primaryKey;size:64"`
	PostID         string    `json:"postId" firestore:"-" bson:"postId" gorm:"index;size:64"`
	Content        string    `json:"content" firestore:"content" bson:"content"`
	AuthorID       string    `json:"authorId" firestore:"authorId" bson:"authorId" gorm:"index;size:128"`
	AuthorName     string    `json:"authorName" firestore:"authorName" bson:"authorName"`
	AuthorPhotoURL string    `json:"authorPhotoURL" firestore:"authorPhotoURL" bson:"authorPhotoURL"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp" bson:"createdAt" gorm:"index"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp" bson:"updatedAt"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"trimmin=1,trimmax=500"`
}
