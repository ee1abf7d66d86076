package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

type (
	// Section is one video lesson inside a Course. Sections form an ordered
	// sequence and are addressable by their generated id.
	Section struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		VideoURL    string `json:"video_url"`
		Position    int    `json:"position"`
	}

	// Course is owned by exactly one instructor, by email. The id is immutable.
	Course struct {
		ID              string    `json:"id"`
		Title           string    `json:"title"`
		Price           float64   `json:"price"`
		Description     string    `json:"description"`
		ImageURL        string    `json:"image_url"`
		Requirements    []string  `json:"requirements"`
		Sections        []Section `json:"sections"`
		InstructorEmail string    `json:"instructor_email"`
		CreatedAt       time.Time `json:"created_at"` // UTC
	}
)

func (c Course) HasSection(sectionID string) bool {
	for _, sec := range c.Sections {
		if sec.ID == sectionID {
			return true
		}
	}
	return false
}

// NewSection contains information needed to add a Section to a new Course.
// The video must already have been uploaded; only its URL is submitted.
type NewSection struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	VideoURL    string `json:"video_url" validate:"required,url"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string       `json:"title" validate:"required"`
	Price        float64      `json:"price" validate:"gte=0"`
	Description  string       `json:"description" validate:"required"`
	ImageURL     string       `json:"image_url" validate:"required,url"`
	Requirements []string     `json:"requirements" validate:"dive,required"`
	Sections     []NewSection `json:"sections" validate:"required,min=1,dive"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)

	// drop empty requirement rows the way the form does
	reqs := nc.Requirements[:0]
	for _, req := range nc.Requirements {
		if req = core.CleanString(req); req != "" {
			reqs = append(reqs, req)
		}
	}
	nc.Requirements = reqs

	return validate.Struct(nc)
}
