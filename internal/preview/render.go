// Package preview renders the static preview site for a lead, mirrors it to
// object storage when configured, and serves the rendered files.
package preview

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/platform/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	maxSlugLen  = 40
	indexFile   = "index.html"
	htmlType    = "text/html; charset=utf-8"
	defaultName = "OutreachEngine"
)

var (
	slugStrip   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpace   = regexp.MustCompile(`\s+`)
	slugDashes  = regexp.MustCompile(`-+`)
	hexColor    = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
	fallbackHex = catalog.Colors{Primary: "#1565C0", Accent: "#ffffff"}
)

// Slug derives the stable artifact location from a business name: lowercase,
// non-alphanumerics stripped, whitespace to hyphens, at most 40 characters.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpace.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}

// Stars renders a rating rounded to the nearest whole star out of five.
func Stars(rating float64) string {
	n := int(math.Round(rating))
	n = max(0, min(5, n))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// Publisher mirrors a rendered artifact somewhere public.
type Publisher interface {
	Publish(ctx context.Context, slug string, body []byte, contentType string) (string, error)
}

// Artifact is the result of one render.
type Artifact struct {
	Slug string
	Path string
	URL  string
}

type excerptView struct {
	Text   string
	Author string
	Date   string
}

type pageView struct {
	BusinessName  string
	ServiceArea   string
	Phone         string
	Rating        string
	ReviewCount   int
	Stars         string
	HeroHeadline  string
	HeroSub       string
	QuoteHeadline string
	Services      []catalog.Service
	Excerpt       *excerptView
	Themes        []string
	Primary       template.CSS
	Accent        template.CSS
	BuiltBy       string
}

// Renderer writes preview pages to <dir>/preview/<slug>/index.html.
type Renderer struct {
	dir       string
	host      string
	builtBy   string
	catalog   *catalog.Catalog
	tmpl      *template.Template
	publisher Publisher
	log       *logger.Logger
}

// NewRenderer creates a renderer. publisher may be nil.
func NewRenderer(dir, host, builtBy string, cat *catalog.Catalog, publisher Publisher, log *logger.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse preview templates: %w", err)
	}
	if strings.TrimSpace(builtBy) == "" {
		builtBy = defaultName
	}
	return &Renderer{
		dir:       dir,
		host:      strings.TrimRight(host, "/"),
		builtBy:   builtBy,
		catalog:   cat,
		tmpl:      tmpl,
		publisher: publisher,
		log:       log,
	}, nil
}

// Render writes the lead's preview, overwriting any earlier render at the
// same slug, and mirrors it when a publisher is configured.
func (r *Renderer) Render(ctx context.Context, l domain.Lead) (Artifact, error) {
	slug := Slug(l.BusinessName)
	if slug == "" {
		return Artifact{}, fmt.Errorf("business name %q has no usable slug", l.BusinessName)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "preview", r.view(l)); err != nil {
		return Artifact{}, fmt.Errorf("render preview: %w", err)
	}

	dir := filepath.Join(r.dir, "preview", slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create preview dir: %w", err)
	}
	path := filepath.Join(dir, indexFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write preview: %w", err)
	}

	if r.publisher != nil {
		if _, err := r.publisher.Publish(ctx, slug, buf.Bytes(), htmlType); err != nil {
			return Artifact{}, err
		}
	}

	r.log.Debug("preview rendered", "slug", slug, "path", path)
	return Artifact{
		Slug: slug,
		Path: path,
		URL:  fmt.Sprintf("%s/preview/%s/", r.host, slug),
	}, nil
}

// Build renders the preview and records its location on the lead.
func (r *Renderer) Build(ctx context.Context, l *domain.Lead) error {
	a, err := r.Render(ctx, *l)
	if err != nil {
		return err
	}
	l.PreviewURL = a.URL
	l.PreviewPath = a.Path
	return nil
}

func (r *Renderer) view(l domain.Lead) pageView {
	cat, ok := r.catalog.Get(l.Category)
	if !ok {
		cat = catalog.Category{Key: l.Category}
	}
	label := cat.Label()

	theme := "quality work"
	if len(l.ReviewThemes) > 0 {
		theme = l.ReviewThemes[0]
	}
	themes := l.ReviewThemes
	if len(themes) > 3 {
		themes = themes[:3]
	}

	v := pageView{
		BusinessName:  l.BusinessName,
		ServiceArea:   l.Metro,
		Phone:         l.Phone,
		Rating:        strconv.FormatFloat(l.Rating, 'f', -1, 64),
		ReviewCount:   l.ReviewCount,
		Stars:         Stars(l.Rating),
		HeroHeadline:  fmt.Sprintf("%s Services in %s", label, l.Metro),
		HeroSub:       fmt.Sprintf("Trusted by local homeowners for %s.", theme),
		QuoteHeadline: fmt.Sprintf("Get a Free %s Estimate", label),
		Services:      r.catalog.ServicesFor(l.Category),
		Themes:        themes,
		BuiltBy:       r.builtBy,
	}
	if l.ReviewExcerpt != "" {
		v.Excerpt = &excerptView{Text: l.ReviewExcerpt, Author: l.ReviewExcerptAuthor, Date: l.ReviewExcerptDate}
	}

	colors := r.catalog.ColorsFor(l.Category)
	v.Primary = safeColor(colors.Primary, fallbackHex.Primary)
	v.Accent = safeColor(colors.Accent, fallbackHex.Accent)
	return v
}

func safeColor(c, fallback string) template.CSS {
	if hexColor.MatchString(c) {
		return template.CSS(c)
	}
	return template.CSS(fallback)
}
