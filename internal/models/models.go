package models

import "time"

type User struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Username     *string   `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Bio          *string   `db:"bio"`
	ProfilePhoto *string   `db:"profile_photo"`
	CreatedAt    time.Time `db:"created_at"`
}

// Author is the slice of a user that is joined onto posts and comments.
type Author struct {
	ID           int64
	Name         string
	Username     *string
	ProfilePhoto *string
}

type Session struct {
	ID        string     `db:"id"`
	UserID    int64      `db:"user_id"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

type Post struct {
	ID            int64
	UserID        int64
	Caption       *string
	ImagePath     string
	LikesCount    int
	CommentsCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	User          Author
}

type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Content   string
	CreatedAt time.Time
	User      Author
}

// PostFilter narrows post listings. A nil UserID lists every post.
type PostFilter struct {
	UserID *int64
}
