package schema

// Schema is a map of expected reply fields to their types.
// Example: {"target": Enum(living...), "reasoning": String()}
type Schema map[string]Type

// Validate checks if data conforms to the schema. Unknown extra fields are
// tolerated; missing or mistyped fields are collected into the returned
// error.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error

	for fieldName, fieldType := range schema {
		value, exists := data[fieldName]
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "required",
			})
			continue
		}

		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}
