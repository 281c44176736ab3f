package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
)

// Fetcher is the cache-aware body source the API decodes from.
type Fetcher interface {
	Fetch(ctx context.Context, url string, ttl time.Duration) ([]byte, error)
}

type TTLs struct {
	Boards  time.Duration
	Catalog time.Duration
	Thread  time.Duration
}

// API is the read-only board api: boards.json, {board}/catalog.json and
// {board}/thread/{no}.json.
type API struct {
	fetcher Fetcher
	baseURL string
	ttls    TTLs
}

func NewAPI(fetcher Fetcher, baseURL string, ttls TTLs) *API {
	return &API{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), ttls: ttls}
}

func (a *API) url(endpoint string) string {
	return a.baseURL + endpoint
}

func (a *API) FetchBoards(ctx context.Context) ([]model.BoardInfo, error) {
	body, err := a.fetcher.Fetch(ctx, a.url("/boards.json"), a.ttls.Boards)
	if err != nil {
		return nil, err
	}
	var res model.BoardsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(err, "decode boards")
	}
	return res.Boards, nil
}

// FetchCatalog returns every thread starter listed in the board catalog, pages
// flattened in order.
func (a *API) FetchCatalog(ctx context.Context, board string) ([]*model.Post, error) {
	body, err := a.fetcher.Fetch(ctx, a.url(fmt.Sprintf("/%s/catalog.json", board)), a.ttls.Catalog)
	if err != nil {
		return nil, err
	}
	var pages []model.CatalogPage
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, errors.Wrapf(err, "decode catalog of /%s/", board)
	}
	var posts []*model.Post
	for _, page := range pages {
		posts = append(posts, page.Threads...)
	}
	return stampBoard(board, posts), nil
}

// FetchThread returns the OP followed by every reply of thread no.
func (a *API) FetchThread(ctx context.Context, board string, no int64) ([]*model.Post, error) {
	body, err := a.fetcher.Fetch(ctx, a.url(fmt.Sprintf("/%s/thread/%d.json", board, no)), a.ttls.Thread)
	if err != nil {
		return nil, err
	}
	var res model.ThreadResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrapf(err, "decode thread /%s/%d", board, no)
	}
	return stampBoard(board, res.Posts), nil
}

// The remote payload carries no board, and an omitted resto decodes to 0.
func stampBoard(board string, posts []*model.Post) []*model.Post {
	res := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		p.Board = board
		res = append(res, p)
	}
	return res
}
