package marker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"steamwatch/internal/apperr"
	"steamwatch/internal/httpx"
	"steamwatch/pkg/logx"
)

const defaultGitHubAPI = "https://api.github.com"

// gistStore keeps the marker as the content of one file in a GitHub gist.
// The file must already exist in the gist.
type gistStore struct {
	http  *httpx.Client
	log   logx.Logger
	url   string
	token string
	file  string
}

func openGist(cfg GistConfig, hc *httpx.Client, log logx.Logger) (Store, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, errors.New("marker.gist.id is required for gist driver")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("marker.gist.token is required for gist driver")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultGitHubAPI
	}
	file := strings.TrimSpace(cfg.File)
	if file == "" {
		file = DefaultGistFile
	}
	return &gistStore{
		http:  hc,
		log:   log,
		url:   base + "/gists/" + url.PathEscape(id),
		token: cfg.Token,
		file:  file,
	}, nil
}

type gistFile struct {
	Content *string `json:"content"`
}

type gistDoc struct {
	Files map[string]gistFile `json:"files"`
}

func (s *gistStore) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.token)
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	return h
}

func (s *gistStore) LoadMarker(ctx context.Context) (string, error) {
	var doc gistDoc
	if err := s.http.GetJSON(ctx, "load marker", s.url, s.header(), &doc); err != nil {
		return "", err
	}
	f, ok := doc.Files[s.file]
	if !ok || f.Content == nil {
		return "", apperr.Missingf("gist", "file %q not found", s.file)
	}
	return strings.TrimSpace(*f.Content), nil
}

func (s *gistStore) SaveMarker(ctx context.Context, value string) error {
	body := map[string]any{
		"files": map[string]any{
			s.file: map[string]string{"content": value},
		},
	}
	if err := s.http.SendJSON(ctx, "save marker", http.MethodPatch, s.url, s.header(), body, nil); err != nil {
		return err
	}
	s.log.Debug("marker saved", logx.String("file", s.file))
	return nil
}

func (s *gistStore) Close() error { return nil }
