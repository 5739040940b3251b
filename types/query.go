package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type ChatParams struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" validate:"required"`
}

type UploadParams struct {
	SessionID string `json:"session_id" validate:"required"`
	Filename  string `json:"filename" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *UploadParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
