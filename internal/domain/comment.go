package domain

import "time"

// CommentType differentiates discussion from solution comments.
type CommentType string

const (
	CommentTypeGeneral  CommentType = "GENERAL"
	CommentTypeSolution CommentType = "SOLUTION"
)

// Comment captures a thread entry on a problem.
type Comment struct {
	ID         string
	ProblemID  string
	AuthorID   string
	AuthorName string
	AuthorRole Role
	Type       CommentType
	Text       string
	CreatedAt  time.Time
}
