package model

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Service records which email address was used to register for one online
// service.
type Service struct {
	ID          string  `json:"id"`
	ServiceName string  `json:"serviceName"`
	Email       string  `json:"email"`
	CategoryID  string  `json:"categoryId"`
	Notes       *string `json:"notes,omitempty"`
	Website     *string `json:"website,omitempty"`
	HasPassword bool    `json:"hasPassword"`
	IsFavorite  bool    `json:"isFavorite"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ServiceInput is the payload for creating a service.
type ServiceInput struct {
	ServiceName string  `json:"serviceName"`
	Email       string  `json:"email"`
	CategoryID  string  `json:"categoryId"`
	Notes       *string `json:"notes,omitempty"`
	Website     *string `json:"website,omitempty"`
	HasPassword bool    `json:"hasPassword"`
}

// Validate checks the fields the add form requires. Email is free text: any
// non-blank value is accepted.
func (in ServiceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ServiceName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.CategoryID, validation.Length(0, 64)),
	)
}

// Normalize trims surrounding whitespace and drops blank optional fields.
func (in ServiceInput) Normalize() ServiceInput {
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	in.Email = strings.TrimSpace(in.Email)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Notes = trimOptional(in.Notes)
	in.Website = trimOptional(in.Website)
	return in
}

// ServicePatch is a partial update. Nil fields are left unchanged.
type ServicePatch struct {
	ServiceName *string `json:"serviceName,omitempty"`
	Email       *string `json:"email,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Website     *string `json:"website,omitempty"`
	HasPassword *bool   `json:"hasPassword,omitempty"`
	IsFavorite  *bool   `json:"isFavorite,omitempty"`
}

// Validate checks the fields present in the patch.
func (p ServicePatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ServiceName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&p.Email, validation.NilOrNotEmpty),
	)
}

// IsEmpty reports whether the patch changes nothing.
func (p ServicePatch) IsEmpty() bool {
	return p.ServiceName == nil && p.Email == nil && p.CategoryID == nil &&
		p.Notes == nil && p.Website == nil && p.HasPassword == nil && p.IsFavorite == nil
}

// Data returns the row data fields the patch sets.
func (p ServicePatch) Data() map[string]any {
	data := map[string]any{}
	if p.ServiceName != nil {
		data["serviceName"] = strings.TrimSpace(*p.ServiceName)
	}
	if p.Email != nil {
		data["email"] = strings.TrimSpace(*p.Email)
	}
	if p.CategoryID != nil {
		data["categoryId"] = *p.CategoryID
	}
	if p.Notes != nil {
		data["notes"] = *p.Notes
	}
	if p.Website != nil {
		data["website"] = *p.Website
	}
	if p.HasPassword != nil {
		data["hasPassword"] = *p.HasPassword
	}
	if p.IsFavorite != nil {
		data["isFavorite"] = *p.IsFavorite
	}
	return data
}

// Data returns the row data fields for a new service. The favorite flag
// always starts false.
func (in ServiceInput) Data() map[string]any {
	data := map[string]any{
		"serviceName": in.ServiceName,
		"email":       in.Email,
		"categoryId":  in.CategoryID,
		"hasPassword": in.HasPassword,
		"isFavorite":  false,
	}
	if in.Notes != nil {
		data["notes"] = *in.Notes
	}
	if in.Website != nil {
		data["website"] = *in.Website
	}
	return data
}

// String returns a pointer to s, for optional fields.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for patch fields.
func Bool(b bool) *bool { return &b }

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
