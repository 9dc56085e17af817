package authz

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
)

//go:embed profiles/*.json
var embeddedProfiles embed.FS

const (
	schemaFile = "schema.json"

	// DefaultTemplateCacheSize bounds the number of roles held in memory.
	DefaultTemplateCacheSize = 16
)

// ErrUnknownRole is returned when no profile template exists for a role.
var ErrUnknownRole = errors.New("no profile template for role")

// Template is a role's profile template: the permission map consulted by
// the endpoint authorizer, keyed by "METHOD:resource".
type Template struct {
	Role        string          `json:"-"`
	Description string          `json:"description,omitempty"`
	Permissions map[string]bool `json:"permissions"`
}

// TemplateStore loads role templates, validates them against the embedded
// schema and keeps the allowed keys of cached roles in a casbin enforcer.
// Evicting a role from the cache removes its policies.
type TemplateStore struct {
	mu       sync.Mutex
	sources  []fs.FS
	schema   *jsonschema.Schema
	cache    *lru.Cache[string, *Template]
	enforcer *auth.RoleEnforcer
}

// NewTemplateStore creates a store. Templates in overrideDir (if set) shadow
// the embedded ones.
func NewTemplateStore(overrideDir string, cacheSize int) (*TemplateStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultTemplateCacheSize
	}

	embedded, err := fs.Sub(embeddedProfiles, "profiles")
	if err != nil {
		return nil, fmt.Errorf("open embedded profiles: %w", err)
	}

	schema, err := compileTemplateSchema(embedded)
	if err != nil {
		return nil, err
	}

	enforcer, err := auth.NewEnforcer()
	if err != nil {
		return nil, err
	}

	s := &TemplateStore{schema: schema, enforcer: enforcer}
	if overrideDir != "" {
		s.sources = append(s.sources, os.DirFS(overrideDir))
	}
	s.sources = append(s.sources, embedded)

	s.cache, err = lru.NewWithEvict[string, *Template](cacheSize, s.evicted)
	if err != nil {
		return nil, fmt.Errorf("create template cache: %w", err)
	}

	return s, nil
}

func compileTemplateSchema(fsys fs.FS) (*jsonschema.Schema, error) {
	raw, err := fs.ReadFile(fsys, schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read template schema: %w", err)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(schemaFile, parsed); err != nil {
		return nil, fmt.Errorf("add template schema: %w", err)
	}

	schema, err := compiler.Compile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	return schema, nil
}

// Decide reports whether key is defined in the role's template and, if so,
// whether the role may use it.
func (s *TemplateStore) Decide(role, key string) (defined, allowed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, err := s.load(role)
	if err != nil {
		return false, false, err
	}

	if _, defined = tmpl.Permissions[key]; !defined {
		return false, false, nil
	}

	allowed, err = s.enforcer.Allowed(role, key)
	if err != nil {
		return true, false, err
	}
	return true, allowed, nil
}

// Template returns the role's template, loading it if needed.
func (s *TemplateStore) Template(role string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(role)
}

// Purge drops every cached template so the next lookup rereads it.
func (s *TemplateStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

func (s *TemplateStore) load(role string) (*Template, error) {
	if tmpl, ok := s.cache.Get(role); ok {
		return tmpl, nil
	}

	tmpl, err := s.read(role)
	if err != nil {
		return nil, err
	}

	if err := s.enforcer.Grant(role, tmpl.Permissions); err != nil {
		return nil, err
	}

	s.cache.Add(role, tmpl)
	logging.Debugf("Loaded profile template for role %s with %d permissions", role, len(tmpl.Permissions))
	return tmpl, nil
}

func (s *TemplateStore) read(role string) (*Template, error) {
	if role == "" || strings.ContainsAny(role, `/\`) || !fs.ValidPath(role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	name := role + ".json"

	for _, src := range s.sources {
		raw, err := fs.ReadFile(src, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read profile template %s: %w", name, err)
		}
		return s.parse(role, raw)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

func (s *TemplateStore) parse(role string, raw []byte) (*Template, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse profile template for role %s: %w", role, err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid profile template for role %s: %w", role, err)
	}

	var tmpl Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("decode profile template for role %s: %w", role, err)
	}
	tmpl.Role = role
	return &tmpl, nil
}

func (s *TemplateStore) evicted(role string, _ *Template) {
	if err := s.enforcer.Revoke(role); err != nil {
		logging.Warnf("Failed to remove policies for evicted role %s: %v", role, err)
	}
}
