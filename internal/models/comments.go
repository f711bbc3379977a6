package models

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type commentRow struct {
	ID           int64     `db:"id"`
	PostID       int64     `db:"post_id"`
	UserID       int64     `db:"user_id"`
	Content      string    `db:"content"`
	CreatedAt    time.Time `db:"created_at"`
	AuthorName   string    `db:"author_name"`
	AuthorHandle *string   `db:"author_username"`
	AuthorPhoto  *string   `db:"author_photo"`
}

func (r commentRow) comment() Comment {
	return Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		UserID:    r.UserID,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		User: Author{
			ID:           r.UserID,
			Name:         r.AuthorName,
			Username:     r.AuthorHandle,
			ProfilePhoto: r.AuthorPhoto,
		},
	}
}

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
	       u.name AS author_name, u.username AS author_username, u.profile_photo AS author_photo
	FROM comments c
	JOIN users u ON u.id = c.user_id`

// CreateComment stores the comment and bumps the post's comments_count in
// the same transaction.
func (s *Store) CreateComment(ctx context.Context, postID, userID int64, content string) (*Comment, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE posts SET comments_count = comments_count + 1 WHERE id = ?`), postID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return tx.QueryRowxContext(ctx,
			tx.Rebind(`INSERT INTO comments (post_id, user_id, content, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
			postID, userID, content, s.stamp(),
		).Scan(&id)
	})
	if err != nil {
		return nil, err
	}
	return s.GetComment(ctx, id)
}

func (s *Store) GetComment(ctx context.Context, id int64) (*Comment, error) {
	var row commentRow
	if err := s.db.GetContext(ctx, &row, s.q(commentSelect+` WHERE c.id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	c := row.comment()
	return &c, nil
}

// DeleteComment removes the comment and decrements its post's counter.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var postID int64
		if err := tx.GetContext(ctx, &postID, tx.Rebind(`SELECT post_id FROM comments WHERE id = ?`), id); err != nil {
			return notFound(err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM comments WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE posts SET comments_count = comments_count - 1 WHERE id = ? AND comments_count > 0`), postID)
		return err
	})
}

// ListComments returns a post's comments newest first.
func (s *Store) ListComments(ctx context.Context, postID int64, limit, offset int) ([]Comment, error) {
	var rows []commentRow
	err := s.db.SelectContext(ctx, &rows,
		s.q(commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`),
		postID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.comment())
	}
	return out, nil
}

func (s *Store) CountComments(ctx context.Context, postID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM comments WHERE post_id = ?`), postID)
	return n, err
}

// RecentComments returns up to perPost newest comments for each post id,
// newest first, keyed by post id.
func (s *Store) RecentComments(ctx context.Context, postIDs []int64, perPost int) (map[int64][]Comment, error) {
	out := make(map[int64][]Comment, len(postIDs))
	if len(postIDs) == 0 || perPost <= 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
		SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
		       u.name AS author_name, u.username AS author_username, u.profile_photo AS author_photo
		FROM (
			SELECT id, post_id, user_id, content, created_at,
			       ROW_NUMBER() OVER (PARTITION BY post_id ORDER BY created_at DESC, id DESC) AS rn
			FROM comments
			WHERE post_id IN (?)
		) c
		JOIN users u ON u.id = c.user_id
		WHERE c.rn <= ?
		ORDER BY c.post_id, c.created_at DESC, c.id DESC`, postIDs, perPost)
	if err != nil {
		return nil, err
	}
	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PostID] = append(out[r.PostID], r.comment())
	}
	return out, nil
}
