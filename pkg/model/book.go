package model

import (
	"time"
)

type Book struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Title     string    `json:"title" bson:"title" validate:"required,min=1,max=200"`
	Author    string    `json:"author" bson:"author" validate:"required,min=1,max=120"`
	Isbn      string    `json:"isbn" bson:"isbn" validate:"required,min=1,max=20"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
}

// BookUpdate carries the mutable fields of a book. Isbn is deliberately
// absent: it is assigned once at creation and never revised.
type BookUpdate struct {
	Title  string `json:"title" validate:"required,min=1,max=200"`
	Author string `json:"author" validate:"required,min=1,max=120"`
}

// BookFilter narrows a catalog listing. Empty fields do not constrain
// the result set.
type BookFilter struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Isbn   string `json:"isbn,omitempty"`
}
