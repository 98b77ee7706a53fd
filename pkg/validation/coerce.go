package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CandidateError describes a candidate that could not be coerced into a RawCandidateContact
type CandidateError struct {
	Index int
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %d: %v", e.Index, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// DecodeCandidates coerces an extractor's JSON array into typed candidates.
// Candidates that fail schema validation are skipped and reported as *CandidateError.
// Elements that are not JSON objects are rejected individually.
// A payload that is not a JSON array yields no candidates and a single error.
func DecodeCandidates(data json.RawMessage) ([]models.RawCandidateContact, []error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, []error{fmt.Errorf("contacts must be a JSON array: %w", err)}
	}

	candidates := make([]models.RawCandidateContact, 0, len(elements))
	var errs []error
	for i, element := range elements {
		var item map[string]any
		if err := json.Unmarshal(element, &item); err != nil {
			errs = append(errs, &CandidateError{Index: i, Err: fmt.Errorf("candidate is not an object: %w", err)})
			continue
		}
		c, err := CoerceCandidate(item)
		if err != nil {
			errs = append(errs, &CandidateError{Index: i, Err: err})
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, errs
}

// CoerceCandidate builds a RawCandidateContact from loosely typed fields.
// Scalars are stringified, contactType defaults to individual and confidence to medium.
func CoerceCandidate(item map[string]any) (models.RawCandidateContact, error) {
	if item == nil {
		return models.RawCandidateContact{}, errors.New("candidate is null")
	}

	c := models.RawCandidateContact{
		Name:              stringField(item, "name"),
		Email:             stringField(item, "email"),
		Phone:             stringField(item, "phone"),
		Title:             stringField(item, "title"),
		Company:           stringField(item, "company"),
		ContactType:       models.ContactType(strings.ToLower(stringField(item, "contactType"))),
		Context:           stringField(item, "context"),
		SourceURL:         stringField(item, "sourceUrl"),
		Confidence:        models.Confidence(strings.ToLower(stringField(item, "confidence"))),
		IsPriorityContact: boolField(item, "isPriorityContact"),
		Address:           stringField(item, "address"),
		LinkedinURL:       stringField(item, "linkedinUrl"),
		WebsiteURL:        stringField(item, "websiteUrl"),
	}
	if c.ContactType == "" {
		c.ContactType = models.ContactTypeIndividual
	}
	if c.Confidence == "" {
		c.Confidence = models.ConfidenceMedium
	}

	if err := validate.Struct(c); err != nil {
		return c, validationError(err)
	}
	return c, nil
}

// ValidateExtraction checks the envelope of an extraction batch
func ValidateExtraction(msg *models.ExtractionMessage) error {
	if msg == nil {
		return errors.New("extraction message is null")
	}
	if err := validate.Struct(msg); err != nil {
		return validationError(err)
	}
	return nil
}

func stringField(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func boolField(item map[string]any, key string) bool {
	switch v := item[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case float64:
		return v != 0
	default:
		return false
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s' (got '%v')", fe.Field(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
