package provisioning

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return models.SlugPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidSlug reports whether slug can name a tenant.
func ValidSlug(slug string) bool {
	return models.SlugPattern.MatchString(slug)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonName(fe.StructField())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "slug":
			msgs = append(msgs, field+" must be 3-50 characters of lowercase letters, digits or hyphens")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param()+" characters")
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

var jsonNames = map[string]string{
	"Name":          "name",
	"Slug":          "slug",
	"AdminEmail":    "admin_email",
	"AdminPassword": "admin_password",
	"AdminFullName": "admin_full_name",
}

func jsonName(field string) string {
	if n, ok := jsonNames[field]; ok {
		return n
	}
	return strings.ToLower(field)
}
