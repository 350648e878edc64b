package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// fieldMessages are the API's validation messages, keyed by struct field.
var fieldMessages = map[string]string{
	"Name":        "User name must be between 4 and 30 characters",
	"Email":       "A valid email address is required",
	"Password":    "Password must be between 6 and 30 characters",
	"Phone":       "Phone number should be between 8 and 20 digits",
	"Company":     "Company name should be between 4 and 30 characters",
	"Title":       "Title must be between 4 and 100 characters",
	"Description": "Description must be between 4 and 1000 characters",
	"Category":    "Category must be one of the categories: Home, Work, Personal",
}

// readFields reads a JSON or form-encoded body as flat string fields. JSON
// scalars are rendered with fmt, so true and "true" read the same.
func readFields(r *http.Request) (map[string]string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	fields := map[string]string{}

	if ct == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for k, v := range raw {
			if v == nil {
				continue
			}
			fields[k] = fmt.Sprint(v)
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}
	return fields, nil
}

// validationMessage returns the message for the first failing field.
func (h *Handler) validationMessage(v any) string {
	err := h.validate.Struct(v)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].StructField()]; ok {
			return msg
		}
		return verrs[0].Error()
	}
	return err.Error()
}

// validNoteID reports whether id looks like a 24-character hex object ID.
func validNoteID(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
