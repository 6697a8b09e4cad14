package models

import "time"

// LessonComment комментарий студента к уроку. Менять и удалять его может только автор.
type LessonComment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	LessonID  int       `json:"lesson_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentView комментарий с именем автора и признаком, может ли зритель его править.
type CommentView struct {
	LessonComment
	AuthorName string `json:"author_name"`
	CanEdit    bool   `json:"can_edit"`
}
