package ingest

import (
	"github.com/OFFIS-RIT/kgstore/pkg/common"

	"github.com/go-playground/validator"
)

// NewValidator returns a validator that understands the entity_type and
// relation_type tags used on common.Triple.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("entity_type", func(fl validator.FieldLevel) bool {
		return common.EntityType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("relation_type", func(fl validator.FieldLevel) bool {
		return common.RelationType(fl.Field().String()).Valid()
	})
	return v
}
