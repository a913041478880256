package inventory

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"bakery-inventory/internal/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldErrors maps a JSON field path to what is wrong with it.
type FieldErrors map[string]string

func invalid(c *fiber.Ctx, message string, errs FieldErrors) error {
	body := fiber.Map{"message": message}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// check validates s and collects failures keyed by JSON path. The top-level
// struct name is dropped from each namespace.
func check(s any) FieldErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe.Namespace())] = describe(fe)
	}
	return out
}

func checkSlice[T any](items []T) FieldErrors {
	out := FieldErrors{}
	for i := range items {
		for k, v := range check(items[i]) {
			out[fmt.Sprintf("[%d].%s", i, k)] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return "must be at least " + fe.Param() + " character(s) long"
		case reflect.Slice:
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "url":
		return "must be a valid URL"
	}
	return "failed " + fe.Tag() + " validation"
}

func paramID(c *fiber.Ctx, entity string) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, entity+" not found")
	}
	return uint(id), nil
}

// storeError turns a ledger error into the HTTP response for it. notFound
// replaces the ledger's message for missing entities when set. Unknown errors
// go to the central error handler.
func storeError(c *fiber.Ctx, err error, invalidMessage, notFound string) error {
	var v *ledger.ValidationError
	var nf *ledger.NotFoundError
	switch {
	case errors.As(err, &v):
		return invalid(c, invalidMessage, FieldErrors{v.Field: v.Message})
	case errors.As(err, &nf) && notFound == "":
		return fiber.NewError(fiber.StatusNotFound, nf.Error())
	case errors.Is(err, ledger.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		return fiber.NewError(fiber.StatusNotFound, notFound)
	case errors.Is(err, ledger.ErrDuplicateBarcode):
		return fiber.NewError(fiber.StatusConflict, "A product with this barcode already exists")
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, "Product was modified concurrently, retry the update")
	}
	return err
}
