package models

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ToggleLike flips the (user, post) like and returns the new state with the
// post's likes_count as read inside the same transaction.
func (s *Store) ToggleLike(ctx context.Context, userID, postID int64) (liked bool, count int, err error) {
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT 1 FROM posts WHERE id = ?`), postID); err != nil {
			return notFound(err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM likes WHERE user_id = ? AND post_id = ?`), userID, postID)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}

		delta := -removed
		if removed == 0 {
			res, err = tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, post_id) DO NOTHING`),
				userID, postID, s.stamp())
			if err != nil {
				return err
			}
			added, err := res.RowsAffected()
			if err != nil {
				return err
			}
			delta = added
			liked = true
		}

		if delta != 0 {
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`UPDATE posts SET likes_count = likes_count + ? WHERE id = ?`), delta, postID); err != nil {
				return err
			}
		}
		return tx.GetContext(ctx, &count, tx.Rebind(`SELECT likes_count FROM posts WHERE id = ?`), postID)
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// LikedPostIDs reports which of postIDs userID has liked.
func (s *Store) LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	liked := make(map[int64]bool, len(postIDs))
	if len(postIDs) == 0 {
		return liked, nil
	}
	query, args, err := sqlx.In(`SELECT post_id FROM likes WHERE user_id = ? AND post_id IN (?)`, userID, postIDs)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, s.q(query), args...); err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// CountLikes counts live like rows for a post.
func (s *Store) CountLikes(ctx context.Context, postID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM likes WHERE post_id = ?`), postID)
	return n, err
}
