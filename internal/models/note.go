// Package models defines the domain types for quire.
package models

import "time"

// Note is one stored note. Content is the serialised document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Folder    string    `json:"folder"`
	Content   string    `json:"content,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteMetadata is what a vault listing knows about a note file.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Folder groups notes. The root folder has an empty name.
type Folder struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EditorSettings are presentation sizes applied to exports and clients.
type EditorSettings struct {
	H1Size        string `json:"h1_size" yaml:"h1_size"`
	H2Size        string `json:"h2_size" yaml:"h2_size"`
	ParagraphSize string `json:"paragraph_size" yaml:"paragraph_size"`
}
