package job

import (
	"strings"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/core/common/validation"
)

type CreateJobDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (d *CreateJobDTO) Validate() *internal.AppError {
	d.Title = strings.TrimSpace(d.Title)
	d.Location = strings.TrimSpace(d.Location)

	v := validation.NewValidator()
	v.Field("title", d.Title).Required().MaxLength(200)
	v.Field("description", d.Description).MaxLength(10000)
	v.Field("location", d.Location).MaxLength(200)
	return v.Validate()
}

// JobResponse carries the passcode only for the owning company.
type JobResponse struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"companyId"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Status      Status     `json:"status"`
	Passcode    string     `json:"passcode,omitempty"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func NewJobResponse(j *Job, viewer *internal.Caller) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		CompanyID:   j.CompanyID,
		Title:       j.Title,
		Slug:        j.Slug,
		Description: j.Description,
		Location:    j.Location,
		Status:      j.Status,
		ClosedAt:    j.ClosedAt,
		CreatedAt:   j.CreatedAt,
	}
	if viewer != nil && viewer.UserID == j.CompanyID {
		resp.Passcode = j.Passcode
	}
	return resp
}

func NewJobListResponse(jobs []*Job, viewer *internal.Caller) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewJobResponse(j, viewer))
	}
	return out
}
