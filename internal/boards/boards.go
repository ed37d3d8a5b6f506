package boards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"board_query_cache/internal/querycache"
)

type Board struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
	Archived    bool   `json:"archived,omitempty"`
}

// Query is a board listing request. Zero fields are left out of the cache
// key so equivalent requests share an entry.
type Query struct {
	Page     int
	Limit    int
	Search   string
	OwnerID  string
	Archived *bool
}

type Page struct {
	Boards     []Board                `json:"boards"`
	Pagination *querycache.Pagination `json:"pagination,omitempty"`
	Source     string                 `json:"source"`
}

const (
	SourceCache   = "cache"
	SourceNetwork = "network"
)

// Fetcher loads a listing from the backend API.
type Fetcher interface {
	FetchBoards(ctx context.Context, params querycache.Params) ([]Board, *querycache.Pagination, error)
}

type FetchFunc func(ctx context.Context, params querycache.Params) ([]Board, *querycache.Pagination, error)

func (f FetchFunc) FetchBoards(ctx context.Context, params querycache.Params) ([]Board, *querycache.Pagination, error) {
	return f(ctx, params)
}

// Cache is the subset of *querycache.Cache the service depends on.
type Cache interface {
	Get(params querycache.Params) (querycache.Entry, bool)
	Set(params querycache.Params, data []json.RawMessage, pagination *querycache.Pagination) querycache.SetOutcome
	Remove(params querycache.Params) bool
	Invalidate(pattern string) int
	Namespace() string
}

type Service struct {
	cache   Cache
	fetcher Fetcher
	logger  *log.Logger
}

func NewService(cache Cache, fetcher Fetcher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{cache: cache, fetcher: fetcher, logger: logger}
}

func (q Query) Params() querycache.Params {
	params := querycache.Params{}
	if q.Page > 0 {
		params["page"] = q.Page
	}
	if q.Limit > 0 {
		params["limit"] = q.Limit
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		params["search"] = search
	}
	if q.OwnerID != "" {
		params["ownerId"] = q.OwnerID
	}
	if q.Archived != nil {
		params["archived"] = *q.Archived
	}
	return params
}

// List serves the listing from cache when possible and stores network
// results for the next caller. Fetch errors are returned and never cached.
func (s *Service) List(ctx context.Context, query Query) (Page, error) {
	if s == nil || s.fetcher == nil {
		return Page{}, errors.New("board service not initialized")
	}
	params := query.Params()

	if s.cache != nil {
		if entry, ok := s.cache.Get(params); ok {
			boards, err := decodeBoards(entry.Data)
			if err == nil {
				return Page{Boards: boards, Pagination: entry.Pagination, Source: SourceCache}, nil
			}
			s.logger.Printf("boards_cache key=%s result=undecodable error=%v", entry.Key, err)
			s.cache.Remove(params)
		}
	}

	boards, pagination, err := s.fetcher.FetchBoards(ctx, params)
	if err != nil {
		return Page{}, fmt.Errorf("fetch boards: %w", err)
	}
	if s.cache != nil {
		data, err := encodeBoards(boards)
		if err != nil {
			s.logger.Printf("boards_cache result=unencodable error=%v", err)
		} else {
			s.cache.Set(params, data, pagination)
		}
	}
	return Page{Boards: boards, Pagination: pagination, Source: SourceNetwork}, nil
}

// Created, Updated and Deleted drop every cached listing: listing keys carry
// no board ids, and any mutation can shift pages or search results.
func (s *Service) Created(boardID string) {
	s.invalidateAll(boardID, "created")
}

func (s *Service) Updated(boardID string) {
	s.invalidateAll(boardID, "updated")
}

func (s *Service) Deleted(boardID string) {
	s.invalidateAll(boardID, "deleted")
}

func (s *Service) invalidateAll(boardID string, mutation string) {
	if s == nil || s.cache == nil {
		return
	}
	removed := s.cache.Invalidate(s.cache.Namespace() + ":")
	s.logger.Printf("boards_cache board_id=%s mutation=%s result=invalidated removed=%d", boardID, mutation, removed)
}

func encodeBoards(boards []Board) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(boards))
	for _, board := range boards {
		data, err := json.Marshal(board)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func decodeBoards(items []json.RawMessage) ([]Board, error) {
	out := make([]Board, 0, len(items))
	for i, item := range items {
		var board Board
		if err := json.Unmarshal(item, &board); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, board)
	}
	return out, nil
}
