package skill

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/clawmart/clawmart/pkg/cerr"
)

func invalid(format string, args ...any) error {
	return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf(format, args...), nil)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return invalid("endpoint is required")
	}
	if strings.HasPrefix(endpoint, "/") {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("endpoint must be a path or an absolute http(s) URL")
	}
	return nil
}

func validatePrice(p float64) error {
	if p < 0 {
		return invalid("pricePerCall must not be negative")
	}
	return nil
}

func validateJSONField(field, raw string) error {
	if raw == "" {
		return nil
	}
	if !json.Valid([]byte(raw)) {
		return invalid("%s must be valid JSON", field)
	}
	return nil
}

func validateSchema(raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw)); err != nil {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("inputSchema is not a valid JSON Schema: %s", err.Error()), err)
	}
	return nil
}

// ValidateInput checks an invocation body against the skill's input schema.
// Skills without a schema accept any body.
func (s *Skill) ValidateInput(body []byte) error {
	if s.InputSchema == "" {
		return nil
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(s.InputSchema), gojsonschema.NewBytesLoader(body))
	if err != nil {
		return cerr.NewError(cerr.InvalidArgument, "request body is not valid JSON", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return cerr.NewError(cerr.InvalidArgument, "input does not match schema: "+strings.Join(msgs, "; "), nil)
	}
	return nil
}
