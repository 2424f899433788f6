// Package faq is the persistent store behind the FAQ commands: one JSON
// document on disk whose "faq" table maps topics to canned responses. The
// file is shared with external tooling, so the document layout is contract.
package faq

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// document is the on-disk layout: table name → topic → response.
type document map[string]map[string]string

const table = "faq"

// Store reads and writes the FAQ document. Safe for concurrent use within
// the process; writes rewrite the whole document atomically via a rename.
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// Open loads the document at path, creating an empty one in memory when the
// file does not exist yet (it is written on first mutation).
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{table: {}}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open faq store: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("parse faq store %s: %w", path, err)
	}
	if s.doc[table] == nil {
		s.doc[table] = map[string]string{}
	}
	return s, nil
}

// Get returns the response for a topic. ok is false when the topic is
// unknown.
func (s *Store) Get(topic string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	response, ok := s.doc[table][topic]
	return response, ok
}

// Upsert creates or replaces a topic.
func (s *Store) Upsert(topic, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc[table][topic] = response
	return s.flushLocked()
}

// Delete removes a topic; deleting an unknown topic is a no-op.
func (s *Store) Delete(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc[table], topic)
	return s.flushLocked()
}

// Topics lists the known topics, sorted.
func (s *Store) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.doc[table]))
	for t := range s.doc[table] {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode faq store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write faq store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace faq store: %w", err)
	}
	return nil
}
