package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// scenarioSchema is the compiled JSON Schema for analysis requests.
var scenarioSchema *jsonschema.Schema

// backendOutputSchema is the compiled JSON Schema for the line an analysis
// backend writes to stdout.
var backendOutputSchema *jsonschema.Schema

func init() {
	scenarioSchema = mustCompileSchema("scenario.schema.json")
	backendOutputSchema = mustCompileSchema("backend-output.schema.json")
}

func mustCompileSchema(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("failed to read embedded %s: %v", name, err))
	}

	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateScenarioBytes validates a raw JSON request body against the
// scenario schema.
func ValidateScenarioBytes(data []byte) []string {
	doc, err := decodeJSON(data)
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(scenarioSchema, doc)
}

// ValidateBackendOutputBytes validates one line of backend output.
func ValidateBackendOutputBytes(data []byte) []string {
	doc, err := decodeJSON(data)
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(backendOutputSchema, doc)
}

// ParseScenario decodes and validates a JSON scenario. Every failure is
// reported as a *models.MalformedScenarioError.
func ParseScenario(data []byte) (*models.DecisionScenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &models.MalformedScenarioError{Problems: []string{"request body is empty"}}
	}

	if errs := ValidateScenarioBytes(data); len(errs) > 0 {
		return nil, &models.MalformedScenarioError{Problems: errs}
	}

	var scenario models.DecisionScenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, &models.MalformedScenarioError{Problems: []string{err.Error()}}
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// ParseScenarioFile reads a scenario from disk. Files ending in .yaml or
// .yml are converted from YAML first; anything else is treated as JSON.
func ParseScenarioFile(path string) (*models.DecisionScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, &models.MalformedScenarioError{Problems: []string{fmt.Sprintf("YAML parse error: %v", err)}}
		}
	}
	return ParseScenario(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return nil, err
	}
	return json.Marshal(convertToJSONCompatible(yamlDoc))
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return doc, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible rewrites YAML-decoded maps with non-string keys
// so the result can be marshalled as JSON.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case map[any]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[fmt.Sprint(k)] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
