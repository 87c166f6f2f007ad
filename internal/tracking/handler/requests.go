package handler

import (
	"rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// RecordRequest is the HTTP request body for both position write endpoints.
// Pointer fields distinguish missing values from zero values so the per-field
// error list can name exactly what is wrong before any storage work begins.
type RecordRequest struct {
	SubjectID *int64   `json:"subject_id"`
	PackageID *int64   `json:"package_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Parsed values (populated by Validate)
	parsedSubjectID domain.SubjectID
	parsedPackageID domain.PackageID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var fields []dErrors.FieldError

	if r.SubjectID == nil {
		fields = append(fields, dErrors.FieldError{Field: "subject_id", Message: "is required"})
	} else if subjectID, err := domain.ParseSubjectID(*r.SubjectID); err != nil {
		fields = append(fields, dErrors.FieldError{Field: "subject_id", Message: "must be a positive integer"})
	} else {
		r.parsedSubjectID = subjectID
	}

	// package_id is optional; when present it must reference a real package.
	if r.PackageID != nil {
		if packageID, err := domain.ParsePackageID(*r.PackageID); err != nil {
			fields = append(fields, dErrors.FieldError{Field: "package_id", Message: "must be a positive integer"})
		} else {
			r.parsedPackageID = packageID
		}
	}

	if r.Latitude == nil {
		fields = append(fields, dErrors.FieldError{Field: "latitude", Message: "is required"})
	} else if *r.Latitude < -90 || *r.Latitude > 90 {
		fields = append(fields, dErrors.FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}

	if r.Longitude == nil {
		fields = append(fields, dErrors.FieldError{Field: "longitude", Message: "is required"})
	} else if *r.Longitude < -180 || *r.Longitude > 180 {
		fields = append(fields, dErrors.FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}

	if len(fields) > 0 {
		return dErrors.NewValidation("invalid location payload", fields...)
	}
	return nil
}

// ParsedSubjectID returns the validated subject id.
func (r *RecordRequest) ParsedSubjectID() domain.SubjectID {
	return r.parsedSubjectID
}

// ParsedPackageID returns the validated package id; zero when absent.
func (r *RecordRequest) ParsedPackageID() domain.PackageID {
	return r.parsedPackageID
}
