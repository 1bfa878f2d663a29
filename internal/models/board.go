package models

import "time"

type Note struct {
	ID        string       `bson:"_id" json:"id"`
	Title     string       `bson:"title" json:"title"`
	Content   string       `bson:"content" json:"content"`
	Author    string       `bson:"author" json:"author"`
	GroupID   string       `bson:"group_id" json:"groupId"`
	Files     []Attachment `bson:"files" json:"files"`
	Likes     []string     `bson:"likes" json:"likes"`
	CreatedAt time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updatedAt"`
}

type Thread struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Body      string    `bson:"body" json:"body"`
	Author    string    `bson:"author" json:"author"`
	GroupID   string    `bson:"group_id" json:"groupId"`
	Likes     []string  `bson:"likes" json:"likes"`
	ViewCount int       `bson:"view_count" json:"viewCount"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Reply hangs off either a note or a thread.
type Reply struct {
	ID          string    `bson:"_id" json:"id"`
	Body        string    `bson:"body" json:"body"`
	Author      string    `bson:"author" json:"author"`
	NoteID      string    `bson:"note_id,omitempty" json:"noteId,omitempty"`
	ThreadID    string    `bson:"thread_id,omitempty" json:"threadId,omitempty"`
	ParentReply string    `bson:"parent_reply,omitempty" json:"parentReply,omitempty"`
	Likes       []string  `bson:"likes" json:"likes"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

type NoteView struct {
	Note
	AuthorRef  UserRef `json:"authorRef"`
	Replies    []Reply `json:"replies"`
	ReplyCount int     `json:"replyCount"`
}

type ThreadView struct {
	Thread
	AuthorRef UserRef `json:"authorRef"`
	Replies   []Reply `json:"replies"`
}
