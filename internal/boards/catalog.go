package boards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"board_query_cache/internal/querycache"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var (
	ErrNotFound  = errors.New("board not found")
	ErrDuplicate = errors.New("board already exists")
	ErrInvalid   = errors.New("board invalid")
)

// Notifier receives mutation notifications. *Service implements it.
type Notifier interface {
	Created(boardID string)
	Updated(boardID string)
	Deleted(boardID string)
}

// Catalog is an in-process board backend. It stands in for the remote API
// behind Fetcher and reports every mutation to its Notifier.
type Catalog struct {
	mu       sync.RWMutex
	boards   map[string]Board
	notifier Notifier
}

func NewCatalog(boards []Board) *Catalog {
	c := &Catalog{boards: make(map[string]Board, len(boards))}
	for _, board := range boards {
		if board.ID == "" {
			continue
		}
		c.boards[board.ID] = board
	}
	return c
}

// LoadCatalog reads a JSON array of boards. An empty path yields an empty
// catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var boards []Board
	if err := json.Unmarshal(data, &boards); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return NewCatalog(boards), nil
}

func (c *Catalog) SetNotifier(n Notifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

func (c *Catalog) FetchBoards(ctx context.Context, params querycache.Params) ([]Board, *querycache.Pagination, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	page := intParam(params, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intParam(params, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	search := strings.ToLower(stringParam(params, "search"))
	owner := stringParam(params, "ownerId")
	archived, _ := params["archived"].(bool)

	c.mu.RLock()
	matched := make([]Board, 0, len(c.boards))
	for _, board := range c.boards {
		if board.Archived != archived {
			continue
		}
		if owner != "" && board.OwnerID != owner {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(board.Name), search) &&
			!strings.Contains(strings.ToLower(board.Description), search) {
			continue
		}
		matched = append(matched, board)
	}
	c.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	pagination := &querycache.Pagination{
		Total: total,
		Pages: (total + limit - 1) / limit,
		Page:  page,
		Limit: limit,
	}
	start := (page - 1) * limit
	if start >= total {
		return []Board{}, pagination, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], pagination, nil
}

func (c *Catalog) Create(board Board) error {
	if board.ID == "" || strings.TrimSpace(board.Name) == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalid)
	}
	c.mu.Lock()
	if _, ok := c.boards[board.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, board.ID)
	}
	c.boards[board.ID] = board
	notifier := c.notifier
	c.mu.Unlock()

	if notifier != nil {
		notifier.Created(board.ID)
	}
	return nil
}

func (c *Catalog) Update(board Board) error {
	if strings.TrimSpace(board.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	c.mu.Lock()
	if _, ok := c.boards[board.ID]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, board.ID)
	}
	c.boards[board.ID] = board
	notifier := c.notifier
	c.mu.Unlock()

	if notifier != nil {
		notifier.Updated(board.ID)
	}
	return nil
}

func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	if _, ok := c.boards[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(c.boards, id)
	notifier := c.notifier
	c.mu.Unlock()

	if notifier != nil {
		notifier.Deleted(id)
	}
	return nil
}

// intParam accepts ints from Query.Params and float64 from decoded JSON.
func intParam(params querycache.Params, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func stringParam(params querycache.Params, name string) string {
	v, _ := params[name].(string)
	return v
}
