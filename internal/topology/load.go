package topology

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/template"
	compose "github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

const topologyFilename = "skiff.yaml"

// LoadOptions control document loading.
type LoadOptions struct {
	// ProjectName overrides the document's top-level name.
	ProjectName string
	// Env is the variable source consulted for every ${VAR} reference.
	Env map[string]string
	// EnvFiles are dotenv files layered under Env (Env wins).
	EnvFiles []string
}

// OSEnv returns the process environment as a variable source.
func OSEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// LoadFile reads and loads a topology document from disk.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	return Load(ctx, data, opts)
}

// Load parses a declarative topology description into a validated Topology.
//
// Every ${VAR} reference in the document must resolve against the variable
// source at load time: a reference with no default and no binding fails with
// *MissingVariableError before anything else happens. Structural errors and
// violated topology invariants fail with *MalformedDocumentError. Unknown
// keys are ignored. Load has no side effects.
func Load(ctx context.Context, data []byte, opts LoadOptions) (*Topology, error) {
	env, err := resolveEnv(opts)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}
	if missing := missingVariables(raw, env); len(missing) > 0 {
		return nil, &MissingVariableError{Variables: missing}
	}

	name := strings.TrimSpace(opts.ProjectName)
	if name == "" {
		name, _ = raw["name"].(string)
	}
	if strings.TrimSpace(name) == "" {
		return nil, &MalformedDocumentError{Detail: "project name is required (top-level name or --project)"}
	}

	details := compose.ConfigDetails{
		ConfigFiles: []compose.ConfigFile{{Filename: topologyFilename, Content: data}},
		Environment: compose.Mapping(env),
	}
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(name, true)
		// Unknown keys are tolerated; invariants are checked below instead.
		o.SkipValidation = true
		o.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}
	if len(project.Services) == 0 {
		return nil, &MalformedDocumentError{Detail: "topology has no services"}
	}

	topo := normalizeProject(project)
	if err := topo.validate(); err != nil {
		return nil, err
	}
	return topo, nil
}

func resolveEnv(opts LoadOptions) (map[string]string, error) {
	base := make(map[string]string, len(opts.Env))
	for k, v := range opts.Env {
		base[k] = v
	}
	if len(opts.EnvFiles) == 0 {
		return base, nil
	}
	merged, err := dotenv.GetEnvFromFile(base, opts.EnvFiles)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return merged, nil
}

// missingVariables scans the raw document for ${VAR} references that have
// no fallback operator and no binding in env. Sorted by name. The raw
// string forms are parsed here because an empty default, ${VAR:-}, still
// allows the variable to be absent.
func missingVariables(raw map[string]any, env map[string]string) []string {
	seen := make(map[string]bool)
	scanVariables(raw, func(name string, fallback bool) {
		if fallback {
			return
		}
		if _, ok := env[name]; ok {
			return
		}
		seen[name] = true
	})

	missing := make([]string, 0, len(seen))
	for name := range seen {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

func scanVariables(value any, visit func(name string, fallback bool)) {
	switch value := value.(type) {
	case string:
		for _, match := range template.DefaultPattern.FindAllString(value, -1) {
			if name, fallback, ok := parseReference(match); ok {
				visit(name, fallback)
			}
		}
	case map[string]any:
		for _, elem := range value {
			scanVariables(elem, visit)
		}
	case []any:
		for _, elem := range value {
			scanVariables(elem, visit)
		}
	}
}

// parseReference splits one template match into the variable name and
// whether it carries a default (:- or -) or presence (:+ or +) operator.
// Escaped $$ references and bare delimiters report ok false. A required
// reference, ${VAR:?msg}, carries no fallback and stays subject to the
// missing check.
func parseReference(match string) (name string, fallback bool, ok bool) {
	body, found := strings.CutPrefix(match, "$")
	if !found || body == "" || strings.HasPrefix(body, "$") {
		return "", false, false
	}
	braced, found := strings.CutPrefix(body, "{")
	if !found {
		return body, false, true
	}
	braced = strings.TrimSuffix(braced, "}")
	if braced == "" {
		return "", false, false
	}
	i := strings.IndexAny(braced, ":-+?")
	if i < 0 {
		return braced, false, true
	}
	op := braced[i:]
	fallback = strings.HasPrefix(op, ":-") || strings.HasPrefix(op, ":+") ||
		strings.HasPrefix(op, "-") || strings.HasPrefix(op, "+")
	return braced[:i], fallback, true
}
