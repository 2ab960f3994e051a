// Package store provides the state store adapter persisting batch and
// session snapshots between runs. It implements domain.StateStore; the
// engine itself performs no file I/O.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relops/pickwise/internal/domain"
)

// YAMLStore persists snapshots as a single YAML file.
type YAMLStore struct {
	path string
}

// NewYAMLStore creates a store writing to the given file path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// File-level DTOs keep the serialized shape independent of the domain types.
type snapshotDoc struct {
	TargetRef  string         `yaml:"target_ref"`
	SavedAt    time.Time      `yaml:"saved_at"`
	Candidates []candidateDoc `yaml:"candidates"`
	Session    sessionDoc     `yaml:"session"`
}

type candidateDoc struct {
	Number        int       `yaml:"number"`
	SHA           string    `yaml:"sha"`
	TrunkPosition int       `yaml:"trunk_position"`
	Title         string    `yaml:"title,omitempty"`
	Author        string    `yaml:"author,omitempty"`
	Merged        bool      `yaml:"merged,omitempty"`
	HasMetadata   bool      `yaml:"has_metadata,omitempty"`
	CommitAuthor  string    `yaml:"commit_author"`
	CommitDate    time.Time `yaml:"commit_date"`
	Message       string    `yaml:"message"`
	Parents       []string  `yaml:"parents,flow"`
}

type sessionDoc struct {
	Position int    `yaml:"position"`
	Applied  []int  `yaml:"applied,flow"`
	Skipped  []int  `yaml:"skipped,flow"`
	Phase    string `yaml:"phase"`
}

// Save persists the snapshot, replacing any previous one. The write goes
// through a temp file plus rename so a crash never leaves a torn snapshot.
func (s *YAMLStore) Save(_ context.Context, snap domain.Snapshot) error {
	doc := snapshotDoc{
		TargetRef: snap.TargetRef,
		SavedAt:   snap.SavedAt,
		Session: sessionDoc{
			Position: snap.Session.Position,
			Applied:  snap.Session.Applied,
			Skipped:  snap.Session.Skipped,
			Phase:    snap.Session.Phase.String(),
		},
	}
	for _, c := range snap.Batch.Items {
		doc.Candidates = append(doc.Candidates, candidateDoc{
			Number:        c.Number,
			SHA:           c.Commit.ID,
			TrunkPosition: c.TrunkPosition,
			Title:         c.Title,
			Author:        c.Author,
			Merged:        c.Merged,
			HasMetadata:   c.HasMetadata,
			CommitAuthor:  c.Commit.Author,
			CommitDate:    c.Commit.When,
			Message:       c.Commit.Message,
			Parents:       c.Commit.Parents,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. The second return is false when no
// snapshot file exists yet.
func (s *YAMLStore) Load(_ context.Context) (domain.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}

	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to parse snapshot %s: %w", s.path, err)
	}

	snap := domain.Snapshot{
		TargetRef: doc.TargetRef,
		SavedAt:   doc.SavedAt,
		Batch:     domain.OrderedBatch{TargetRef: doc.TargetRef},
		Session: domain.SessionState{
			Position: doc.Session.Position,
			Applied:  doc.Session.Applied,
			Skipped:  doc.Session.Skipped,
			Phase:    parsePhase(doc.Session.Phase),
		},
	}
	for _, c := range doc.Candidates {
		snap.Batch.Items = append(snap.Batch.Items, domain.Candidate{
			Number:        c.Number,
			TrunkPosition: c.TrunkPosition,
			Title:         c.Title,
			Author:        c.Author,
			Merged:        c.Merged,
			HasMetadata:   c.HasMetadata,
			Commit: domain.Commit{
				ID:      c.SHA,
				Parents: c.Parents,
				Author:  c.CommitAuthor,
				When:    c.CommitDate,
				Message: c.Message,
			},
		})
	}
	return snap, true, nil
}

func parsePhase(s string) domain.SessionPhase {
	for _, p := range []domain.SessionPhase{
		domain.PhaseReady,
		domain.PhaseAwaitingDecision,
		domain.PhaseCompleted,
		domain.PhaseAborted,
		domain.PhaseHalted,
	} {
		if p.String() == s {
			return p
		}
	}
	return domain.PhaseReady
}
