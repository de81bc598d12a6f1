package document

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// StarterDefinition describes one built-in starter template
type StarterDefinition struct {
	Key         string
	Name        string
	Description string
	FilePath    string // Path within embed.FS
}

// GetStarterDefinitions returns the built-in starter templates
func GetStarterDefinitions() []StarterDefinition {
	return []StarterDefinition{
		{
			Key:         "blank",
			Name:        "Blank",
			Description: "Empty quotation in USD",
			FilePath:    "templates/blank.yaml",
		},
		{
			Key:         "web-development",
			Name:        "Website development",
			Description: "Discovery, design, development and QA phases billed per person-day",
			FilePath:    "templates/web-development.yaml",
		},
		{
			Key:         "interior-design",
			Name:        "Interior renovation",
			Description: "Demolition, flooring and painting billed per square meter",
			FilePath:    "templates/interior-design.yaml",
		},
		{
			Key:         "consulting",
			Name:        "Consulting engagement",
			Description: "Hourly assessment and recommendations",
			FilePath:    "templates/consulting.yaml",
		},
	}
}

// StarterTemplate is a loaded starter template
type StarterTemplate struct {
	// ID is stable across restarts
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Document    *Document `json:"-"`
	Categories  int       `json:"categories"`
	Tasks       int       `json:"tasks"`
}

// Instantiate builds a fresh quotation from the template
func (t *StarterTemplate) Instantiate() (quotation.Quotation, error) {
	return t.Document.Build()
}

// TemplateStoreConfig configures the template store
type TemplateStoreConfig struct {
	// ExternalDir overrides embedded templates with files of the same name.
	// If empty or a file doesn't exist there, embedded templates are used.
	ExternalDir string
}

// TemplateStore holds the starter templates
type TemplateStore struct {
	externalDir string
	templates   []StarterTemplate
	mu          sync.RWMutex
}

// NewTemplateStore creates a template store and loads all templates
func NewTemplateStore(config TemplateStoreConfig) (*TemplateStore, error) {
	store := &TemplateStore{externalDir: config.ExternalDir}
	if err := store.loadTemplates(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *TemplateStore) loadTemplates() error {
	defs := GetStarterDefinitions()
	templates := make([]StarterTemplate, 0, len(defs))

	for _, def := range defs {
		content, err := s.loadTemplateContent(def.FilePath)
		if err != nil {
			return fmt.Errorf("failed to load template %s: %w", def.Key, err)
		}
		doc, err := Decode(bytes.NewReader(content), FormatYAML)
		if err != nil {
			return fmt.Errorf("failed to decode template %s: %w", def.Key, err)
		}
		// Reject templates the task model would refuse
		q, err := doc.Build()
		if err != nil {
			return fmt.Errorf("invalid template %s: %w", def.Key, err)
		}

		templates = append(templates, StarterTemplate{
			ID:          generateTemplateID(def.Key),
			Key:         def.Key,
			Name:        def.Name,
			Description: def.Description,
			Document:    doc,
			Categories:  q.CategoryCount(),
			Tasks:       q.TaskCount(),
		})
	}

	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	return nil
}

// loadTemplateContent loads template content from external dir or embedded
func (s *TemplateStore) loadTemplateContent(embeddedPath string) ([]byte, error) {
	if s.externalDir != "" {
		externalPath := filepath.Join(s.externalDir, filepath.Base(embeddedPath))
		if content, err := os.ReadFile(externalPath); err == nil {
			return content, nil
		}
		// Fall through to embedded if external not found
	}
	return templateFS.ReadFile(embeddedPath)
}

// GetByKey returns a template by key or ID
func (s *TemplateStore) GetByKey(key string) (*StarterTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.templates {
		if s.templates[i].Key == key || s.templates[i].ID == key {
			t := s.templates[i]
			return &t, nil
		}
	}
	return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("template %q not found", key))
}

// GetAll returns all templates
func (s *TemplateStore) GetAll() []StarterTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]StarterTemplate, len(s.templates))
	copy(result, s.templates)
	return result
}

// Instantiate builds a quotation from the template with the given key
func (s *TemplateStore) Instantiate(key string) (quotation.Quotation, error) {
	t, err := s.GetByKey(key)
	if err != nil {
		return quotation.Quotation{}, err
	}
	return t.Instantiate()
}

// Reload reloads all templates from disk/embedded
func (s *TemplateStore) Reload() error {
	return s.loadTemplates()
}

// generateTemplateID generates a stable UUID v5 from the template key
func generateTemplateID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("quotation-template:"+key)).String()
}
