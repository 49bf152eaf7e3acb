package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

const (
	maxAnnotationText     = 20000
	maxAnnotationResponse = 8 << 20
)

var (
	reRubyText  = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRubyParen = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)

	errNonPublicAddress = errors.New("article address is not public")
)

// AnnotationConfig points the service at the external annotator.
type AnnotationConfig struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	ArticleMaxBytes int64
}

// AnnotationService turns free text into lesson sentences through an external
// AI annotator. Nothing in the response is trusted.
type AnnotationService struct {
	client    *http.Client
	articles  *http.Client
	cfg       AnnotationConfig
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	newID     func() string
}

// NewAnnotationService constructs the service. An empty endpoint is allowed;
// every call then fails with ANNOTATION_FAILED.
func NewAnnotationService(cfg AnnotationConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AnnotationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ArticleMaxBytes <= 0 {
		cfg.ArticleMaxBytes = 10 << 20
	}
	return &AnnotationService{
		client:    &http.Client{Timeout: cfg.Timeout},
		articles:  newArticleClient(cfg.Timeout),
		cfg:       cfg,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// newArticleClient returns a client that only connects to public unicast
// addresses. The check runs on the resolved address of every dial, redirects
// included, and proxies are bypassed so the check sees the real peer.
func newArticleClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return err
			}
			if !isPublicAddr(addr) {
				return fmt.Errorf("%w: %s", errNonPublicAddress, addr)
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast()
}

// flexCandidates accepts jyutping as an array or as one string of
// candidates separated by spaces, commas or slashes.
type flexCandidates []string

func (f *flexCandidates) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("jyutping must be a string or a list of strings")
	}
	*f = strings.FieldsFunc(single, func(r rune) bool {
		return r == ' ' || r == ',' || r == '/'
	})
	return nil
}

type annotatedWord struct {
	Char             string         `json:"char" validate:"max=32"`
	Jyutping         flexCandidates `json:"jyutping" validate:"max=16"`
	SelectedJyutping string         `json:"selectedJyutping"`
}

type annotatedSentence struct {
	ID          string          `json:"id" validate:"max=64"`
	Words       []annotatedWord `json:"words" validate:"dive"`
	Translation string          `json:"translation" validate:"max=4000"`
	Explanation string          `json:"explanation" validate:"max=8000"`
}

type annotatedResponse struct {
	Sentences []annotatedSentence `json:"sentences" validate:"required,min=1,dive"`
}

// Annotate sends text to the annotator and returns repaired sentences.
func (s *AnnotationService) Annotate(ctx context.Context, text string) (*dto.AnnotationResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "text is required")
	}
	if utf8.RuneCountInString(text) > maxAnnotationText {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("text exceeds %d characters", maxAnnotationText))
	}
	if s.cfg.Endpoint == "" {
		s.metrics.RecordAnnotation("unconfigured")
		return nil, appErrors.Clone(appErrors.ErrAnnotationFailed, "annotation service is not configured")
	}

	body, err := s.call(ctx, text)
	if err != nil {
		s.metrics.RecordAnnotation("no_response")
		s.logger.Warn("annotation call failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrAnnotationFailed.Code, appErrors.ErrAnnotationFailed.Status, "no response")
	}

	parsed, err := s.decode(body)
	if err != nil {
		s.metrics.RecordAnnotation("malformed")
		s.logger.Warn("annotation response rejected", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrAnnotationFailed.Code, appErrors.ErrAnnotationFailed.Status, "malformed response")
	}

	sentences, repaired := s.repair(parsed.Sentences)
	if len(sentences) == 0 {
		s.metrics.RecordAnnotation("malformed")
		return nil, appErrors.Clone(appErrors.ErrAnnotationFailed, "malformed response")
	}
	s.metrics.RecordAnnotation("ok")
	if repaired > 0 {
		s.logger.Info("annotation response repaired", zap.Int("repairs", repaired), zap.Int("sentences", len(sentences)))
	}
	return &dto.AnnotationResponse{Sentences: sentences, Repaired: repaired}, nil
}

// AnnotateArticle fetches a web page, extracts its readable text and annotates it.
func (s *AnnotationService) AnnotateArticle(ctx context.Context, rawURL string) (*dto.AnnotationResponse, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "article url must be an absolute http(s) address")
	}
	if s.cfg.Endpoint == "" {
		s.metrics.RecordAnnotation("unconfigured")
		return nil, appErrors.Clone(appErrors.ErrAnnotationFailed, "annotation service is not configured")
	}

	page, err := s.fetchArticle(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not extract article text")
	}
	text := truncateRunes(strings.TrimSpace(article.TextContent), maxAnnotationText)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "article has no readable text")
	}

	resp, err := s.Annotate(ctx, text)
	if err != nil {
		return nil, err
	}
	resp.Title = strings.TrimSpace(article.Title)
	return resp, nil
}

func (s *AnnotationService) call(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnnotationResponse))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("annotator returned %s", resp.Status)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("annotator returned an empty body")
	}
	return body, nil
}

// decode accepts {"sentences":[...]} or a bare sentence array.
func (s *AnnotationService) decode(body []byte) (*annotatedResponse, error) {
	body = bytes.TrimSpace(body)
	var parsed annotatedResponse
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &parsed.Sentences); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// repair fixes what can be fixed so every sentence satisfies the lesson
// invariants, and reports how many fixes were made.
func (s *AnnotationService) repair(in []annotatedSentence) ([]models.Sentence, int) {
	repaired := 0
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Sentence, 0, len(in))

	for _, raw := range in {
		words := make([]models.Word, 0, len(raw.Words))
		for _, w := range raw.Words {
			char := strings.TrimSpace(w.Char)
			if char == "" {
				repaired++
				continue
			}
			word, fixed := normaliseWord(char, w.Jyutping, w.SelectedJyutping)
			if fixed {
				repaired++
			}
			words = append(words, word)
		}
		if len(words) == 0 {
			repaired++
			continue
		}

		id := strings.TrimSpace(raw.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = s.newID()
			repaired++
		}
		seen[id] = struct{}{}

		out = append(out, models.Sentence{
			ID:          id,
			Words:       words,
			Translation: strings.TrimSpace(raw.Translation),
			Explanation: strings.TrimSpace(raw.Explanation),
		})
	}
	return out, repaired
}

func normaliseWord(char string, candidates []string, selected string) (models.Word, bool) {
	fixed := false
	jyutping := make([]string, 0, len(candidates))
	dedupe := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			fixed = true
			continue
		}
		if _, ok := dedupe[c]; ok {
			fixed = true
			continue
		}
		dedupe[c] = struct{}{}
		jyutping = append(jyutping, c)
	}

	selected = strings.ToLower(strings.TrimSpace(selected))
	switch {
	case len(jyutping) == 0:
		if selected != "" {
			fixed = true
		}
		selected = ""
	case selected == "":
		selected = jyutping[0]
	default:
		if _, ok := dedupe[selected]; !ok {
			selected = jyutping[0]
			fixed = true
		}
	}
	return models.Word{Char: char, Jyutping: jyutping, SelectedJyutping: selected}, fixed
}

func (s *AnnotationService) fetchArticle(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid article url")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.articles.Do(req)
	if errors.Is(err, errNonPublicAddress) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "article url must point to a public address")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAnnotationFailed.Code, appErrors.ErrAnnotationFailed.Status, "could not fetch article")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.Clone(appErrors.ErrAnnotationFailed, fmt.Sprintf("article returned %s", resp.Status))
	}
	if resp.ContentLength > s.cfg.ArticleMaxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("article exceeds %d bytes", s.cfg.ArticleMaxBytes))
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.ArticleMaxBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAnnotationFailed.Code, appErrors.ErrAnnotationFailed.Status, "could not read article")
	}
	if int64(len(page)) > s.cfg.ArticleMaxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("article exceeds %d bytes", s.cfg.ArticleMaxBytes))
	}
	return stripRuby(page), nil
}

// stripRuby drops ruby annotations so pronunciation hints do not leak into the
// extracted text.
func stripRuby(page []byte) []byte {
	page = reRubyText.ReplaceAll(page, nil)
	return reRubyParen.ReplaceAll(page, nil)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
