package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"todoTree/internal/handlers/dto"
	"todoTree/internal/priority"
	"todoTree/internal/service"
	"unicode/utf8"
)

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return service.NewValidationError("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > service.MaxTitleLength {
		return service.NewValidationError("title", fmt.Sprintf("must be at most %d characters", service.MaxTitleLength))
	}
	return nil
}

func validateWeight(weight int) error {
	if !priority.ValidWeight(weight) {
		return service.NewValidationError("weight",
			fmt.Sprintf("must be between %d and %d", priority.MinWeight, priority.MaxWeight))
	}
	return nil
}

func validateCreate(req dto.CreateTaskRequest) error {
	if err := validateTitle(req.Title); err != nil {
		return err
	}
	if req.Weight != nil {
		return validateWeight(*req.Weight)
	}
	return nil
}

func validateUpdate(req dto.UpdateTaskRequest) error {
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.Weight != nil {
		return validateWeight(*req.Weight)
	}
	return nil
}
