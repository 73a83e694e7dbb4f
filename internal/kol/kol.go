// Package kol finds an influential Weibo account for a product category
// and drafts an outreach letter to it.
package kol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/flowerdesk/internal/prompts"
)

// DefaultProfileURL is the Weibo profile endpoint; the uid is appended as
// a query parameter.
const DefaultProfileURL = "https://weibo.com/ajax/profile/detail"

// DefaultInterval paces profile fetches.
const DefaultInterval = 3 * time.Second

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.82 Safari/537.36"

const maxProfileSize = 1 << 20

// DefaultUIDs are well-known accounts used when lookup finds nothing.
var DefaultUIDs = []string{"1669879400", "2803301701", "2106404650"}

var uidPattern = regexp.MustCompile(`\d+`)

// Letter is the outreach result.
type Letter struct {
	Summary  string   `json:"summary"`
	Facts    []string `json:"facts"`
	Interest []string `json:"interest"`
	Letter   []string `json:"letter"`
}

// Generator produces lookup answers and letters.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Config configures profile fetching.
type Config struct {
	ProfileURL string
	Cookie     string
	// Interval is the minimum gap between profile fetches. Zero uses
	// DefaultInterval; a negative value disables pacing.
	Interval time.Duration
	Client   *http.Client
}

// Finder discovers KOLs.
type Finder struct {
	gen     Generator
	prompts *prompts.Catalog
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Finder.
func New(gen Generator, catalog *prompts.Catalog, cfg Config, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = DefaultProfileURL
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Finder{
		gen:     gen,
		prompts: catalog,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Find looks up a KOL for category and returns a letter to them. It never
// fails: any error along the way yields DefaultLetter(category).
func (f *Finder) Find(ctx context.Context, category string) Letter {
	uid := f.LookupUID(ctx, category)

	profile, err := f.FetchProfile(ctx, uid)
	if err != nil {
		f.logger.Warn("fetching kol profile", "uid", uid, "error", err)
		profile = f.fetchBackup(ctx, uid)
	}
	if profile == nil {
		return DefaultLetter(category)
	}

	FilterChinese(profile)
	Enrich(profile, category)

	letter, err := f.writeLetter(ctx, profile)
	if err != nil {
		f.logger.Error("writing kol letter", "uid", uid, "error", err)
		return DefaultLetter(category)
	}
	return letter
}

// LookupUID asks the backend for a UID and takes the first number in the
// answer, falling back to the first default UID.
func (f *Finder) LookupUID(ctx context.Context, category string) string {
	prompt, err := f.prompts.Render(prompts.KOLLookup, struct{ Category string }{category})
	if err != nil {
		f.logger.Error("rendering kol lookup prompt", "error", err)
		return DefaultUIDs[0]
	}
	out, err := f.gen.Generate(ctx, prompt)
	if err != nil {
		f.logger.Warn("kol lookup failed", "category", category, "error", err)
		return DefaultUIDs[0]
	}
	uid := uidPattern.FindString(out)
	if uid == "" {
		f.logger.Info("no kol uid found, using default", "category", category)
		return DefaultUIDs[0]
	}
	f.logger.Info("kol uid found", "category", category, "uid", uid)
	return uid
}

func (f *Finder) fetchBackup(ctx context.Context, tried string) map[string]any {
	for _, uid := range DefaultUIDs {
		if uid == tried {
			continue
		}
		profile, err := f.FetchProfile(ctx, uid)
		if err == nil {
			return profile
		}
		f.logger.Warn("fetching backup kol profile", "uid", uid, "error", err)
	}
	return nil
}

// FetchProfile downloads the profile JSON for uid.
func (f *Finder) FetchProfile(ctx context.Context, uid string) (map[string]any, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(f.cfg.ProfileURL)
	if err != nil {
		return nil, fmt.Errorf("parsing profile url: %w", err)
	}
	q := u.Query()
	q.Set("uid", uid)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://weibo.com")
	if f.cfg.Cookie != "" {
		req.Header.Set("Cookie", f.cfg.Cookie)
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile returned status %d", resp.StatusCode)
	}

	var profile map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileSize)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if len(profile) == 0 {
		return nil, errors.New("empty profile")
	}
	if ok, present := profile["ok"].(float64); present && ok != 1 {
		return nil, fmt.Errorf("profile not available (ok=%v)", ok)
	}
	return profile, nil
}

func (f *Finder) writeLetter(ctx context.Context, profile map[string]any) (Letter, error) {
	info, err := marshalProfile(profile)
	if err != nil {
		return Letter{}, err
	}
	prompt, err := f.prompts.Render(prompts.KOLLetter, struct{ Profile string }{info})
	if err != nil {
		return Letter{}, err
	}
	out, err := f.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		return Letter{}, err
	}
	return parseLetter(out)
}

func parseLetter(out string) (Letter, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")

	var l Letter
	if err := json.Unmarshal([]byte(out), &l); err != nil {
		return Letter{}, fmt.Errorf("decoding letter: %w", err)
	}
	if l.Summary == "" || len(l.Letter) == 0 {
		return Letter{}, errors.New("letter is incomplete")
	}
	return l, nil
}

func marshalProfile(profile map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(profile); err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
