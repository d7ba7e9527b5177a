package model

import "time"

// Category groups movies (e.g. Drama, Action).
type Category struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Movie is a catalog entry.  Slug is derived from the title and is unique.
type Movie struct {
	ID              uint64     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Description     string     `json:"description,omitempty"`
	Poster          string     `json:"poster,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	SuitableAge     int        `json:"suitable_age"`
	ReleaseDate     *time.Time `json:"release_date,omitempty"`
	CategoryID      uint64     `json:"category_id,omitempty"`
	CategoryName    string     `json:"category_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
