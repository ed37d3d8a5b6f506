package querycache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Pagination struct {
	Total int `json:"total"`
	Pages int `json:"pages"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Entry is one cached result set. Entries are never mutated; a Set on the
// same key replaces the whole entry.
type Entry struct {
	Data       []json.RawMessage
	Pagination *Pagination
	Timestamp  time.Time
	Key        string
}

// record is the durable JSON shape of an Entry.
type record struct {
	Data       []json.RawMessage `json:"data"`
	Pagination *Pagination       `json:"pagination,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Params     string            `json:"params"`
}

func encodeRecord(entry Entry) (string, error) {
	data := entry.Data
	if data == nil {
		data = []json.RawMessage{}
	}
	payload, err := marshalJSON(record{
		Data:       data,
		Pagination: entry.Pagination,
		Timestamp:  entry.Timestamp.UnixMilli(),
		Params:     entry.Key,
	})
	if err != nil {
		return "", fmt.Errorf("encode entry %q: %w", entry.Key, err)
	}
	return string(payload), nil
}

func decodeRecord(raw string, key string) (Entry, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Entry{}, fmt.Errorf("decode entry %q: %w", key, err)
	}
	if rec.Timestamp <= 0 {
		return Entry{}, errors.New("decode entry " + key + ": missing timestamp")
	}
	if rec.Data == nil {
		rec.Data = []json.RawMessage{}
	}
	return Entry{
		Data:       rec.Data,
		Pagination: rec.Pagination,
		Timestamp:  time.UnixMilli(rec.Timestamp).UTC(),
		Key:        key,
	}, nil
}

func cloneEntry(entry Entry) Entry {
	entry.Data = cloneData(entry.Data)
	entry.Pagination = clonePagination(entry.Pagination)
	return entry
}

func cloneData(data []json.RawMessage) []json.RawMessage {
	if data == nil {
		return nil
	}
	out := make([]json.RawMessage, len(data))
	for i, item := range data {
		if item == nil {
			continue
		}
		out[i] = append(json.RawMessage(nil), item...)
	}
	return out
}

func clonePagination(p *Pagination) *Pagination {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}
