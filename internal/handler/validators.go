package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stagepay/internal/model"
)

// RegisterValidators adds the request tags used by the handlers to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("stage_status", func(fl validator.FieldLevel) bool {
		return model.StageStatus(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("dispute_status", func(fl validator.FieldLevel) bool {
		return model.DisputeStatus(fl.Field().String()).Valid()
	})
}
