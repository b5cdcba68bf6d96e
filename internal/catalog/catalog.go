// Package catalog holds the static tour definitions and help articles.
//
// Both are authored as YAML and embedded in the binary. Step content ids
// resolve first against tour content and then against article titles, so a
// step can point straight at a metric explainer.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"bilancio/internal/core"
)

//go:embed tours.yaml
var toursYAML []byte

//go:embed articles.yaml
var articlesYAML []byte

var (
	ErrDuplicateTour    = errors.New("duplicate tour id")
	ErrDuplicateArticle = errors.New("duplicate article id")
	ErrEmptyArticleID   = errors.New("article id is required")
)

// Catalog is immutable after Load.
type Catalog struct {
	tours    []core.Tour
	byID     map[string]int
	content  map[string]core.StepContent
	articles map[string]Article
	order    []string
}

type toursFile struct {
	Tours   []tourDTO             `yaml:"tours"`
	Content map[string]contentDTO `yaml:"content"`
}

type tourDTO struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Description      string    `yaml:"description"`
	EstimatedMinutes int       `yaml:"estimatedMinutes"`
	Module           string    `yaml:"module"`
	Steps            []stepDTO `yaml:"steps"`
}

type stepDTO struct {
	ID               string  `yaml:"id"`
	Target           string  `yaml:"target"`
	Placement        string  `yaml:"placement"`
	ContentID        string  `yaml:"contentId"`
	WaitForEvent     string  `yaml:"waitForEvent"`
	Fallback         string  `yaml:"fallbackBehavior"`
	HighlightPadding float64 `yaml:"highlightPadding"`
	AllowInteraction bool    `yaml:"allowInteraction"`
}

type contentDTO struct {
	Title string `yaml:"title"`
	Short string `yaml:"short"`
	Body  string `yaml:"body"`
}

type articlesFile struct {
	Articles []Article `yaml:"articles"`
}

func (d tourDTO) toTour() core.Tour {
	t := core.Tour{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		EstimatedMinutes: d.EstimatedMinutes,
		Module:           d.Module,
		Steps:            make([]core.TourStep, 0, len(d.Steps)),
	}
	for _, s := range d.Steps {
		step := core.TourStep{
			ID:               s.ID,
			Target:           s.Target,
			Placement:        core.Placement(s.Placement),
			ContentID:        s.ContentID,
			WaitForEvent:     s.WaitForEvent,
			Fallback:         core.FallbackBehavior(s.Fallback),
			HighlightPadding: s.HighlightPadding,
			AllowInteraction: s.AllowInteraction,
		}
		t.Steps = append(t.Steps, step.WithDefaults())
	}
	return t
}

// Load parses tour and article YAML documents and validates every tour.
func Load(tours, articles []byte) (*Catalog, error) {
	var tf toursFile
	if err := yaml.Unmarshal(tours, &tf); err != nil {
		return nil, fmt.Errorf("parse tours: %w", err)
	}
	var af articlesFile
	if err := yaml.Unmarshal(articles, &af); err != nil {
		return nil, fmt.Errorf("parse articles: %w", err)
	}

	c := &Catalog{
		byID:     make(map[string]int, len(tf.Tours)),
		content:  make(map[string]core.StepContent, len(tf.Content)),
		articles: make(map[string]Article, len(af.Articles)),
	}
	for _, d := range tf.Tours {
		t := d.toTour()
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTour, t.ID)
		}
		c.byID[t.ID] = len(c.tours)
		c.tours = append(c.tours, t)
	}
	for id, d := range tf.Content {
		c.content[id] = core.StepContent{Title: d.Title, Short: d.Short, Body: d.Body}
	}
	for _, a := range af.Articles {
		if a.ID == "" {
			return nil, ErrEmptyArticleID
		}
		if _, dup := c.articles[a.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateArticle, a.ID)
		}
		if err := a.validateRules(); err != nil {
			return nil, fmt.Errorf("article %s: %w", a.ID, err)
		}
		c.articles[a.ID] = a
		c.order = append(c.order, a.ID)
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(toursYAML, articlesYAML)
	})
	return defaultCat, defaultErr
}

// Tour looks up a tour by id.
func (c *Catalog) Tour(id string) (core.Tour, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.Tour{}, false
	}
	return c.tours[i], true
}

// Tours returns every tour in catalog order.
func (c *Catalog) Tours() []core.Tour {
	out := make([]core.Tour, len(c.tours))
	copy(out, c.tours)
	return out
}

// Content resolves a step content id.
func (c *Catalog) Content(id string) (core.StepContent, bool) {
	if v, ok := c.content[id]; ok {
		return v, true
	}
	if a, ok := c.articles[id]; ok {
		return core.StepContent{Title: a.Title, Short: a.Short, Body: a.Body}, true
	}
	return core.StepContent{}, false
}

// Article looks up a help article by id.
func (c *Catalog) Article(id string) (Article, bool) {
	a, ok := c.articles[id]
	return a, ok
}

// Articles returns every article in file order.
func (c *Catalog) Articles() []Article {
	out := make([]Article, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.articles[id])
	}
	return out
}

// Related resolves an article's related ids, dropping unknown ones.
func (c *Catalog) Related(id string) []Article {
	a, ok := c.articles[id]
	if !ok {
		return nil
	}
	out := make([]Article, 0, len(a.Related))
	for _, rid := range a.Related {
		if r, ok := c.articles[rid]; ok && rid != id {
			out = append(out, r)
		}
	}
	return out
}
