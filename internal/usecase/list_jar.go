package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-jar/internal/domain"
)

// ListJarInput contains the parameters for listing jar tasks.
type ListJarInput struct {
	Date   string          // Partition to list (default: today)
	Status []domain.Status // Only include these statuses (empty = all)
	All    bool            // List every partition instead of Date
}

// JarPartition is the content of one date partition.
type JarPartition struct {
	Date    string
	Entries []domain.JarEntry
}

// ListJarOutput contains the listed partitions.
type ListJarOutput struct {
	Partitions []JarPartition
}

// ListJar is the use case for listing the jar.
type ListJar struct {
	jars  domain.JarStore
	clock domain.Clock
}

// NewListJar creates a new ListJar use case.
func NewListJar(jars domain.JarStore, clock domain.Clock) *ListJar {
	return &ListJar{jars: jars, clock: clock}
}

// Execute returns the task entries of one or all partitions.
// Unreadable entries are always included so they can be repaired.
func (uc *ListJar) Execute(_ context.Context, in ListJarInput) (*ListJarOutput, error) {
	for _, s := range in.Status {
		if !s.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, s)
		}
	}

	var dates []string
	if in.All {
		var err error
		dates, err = uc.jars.Partitions()
		if err != nil {
			return nil, fmt.Errorf("list partitions: %w", err)
		}
	} else {
		date := in.Date
		if date == "" {
			date = domain.Partition(uc.clock.Now())
		}
		if err := domain.ValidatePartition(date); err != nil {
			return nil, err
		}
		dates = []string{date}
	}

	out := &ListJarOutput{}
	for _, date := range dates {
		entries, err := uc.jars.List(date)
		if err != nil {
			return nil, err
		}
		out.Partitions = append(out.Partitions, JarPartition{
			Date:    date,
			Entries: filterEntries(entries, in.Status),
		})
	}
	return out, nil
}

func filterEntries(entries []domain.JarEntry, statuses []domain.Status) []domain.JarEntry {
	if len(statuses) == 0 {
		return entries
	}
	var filtered []domain.JarEntry
	for _, e := range entries {
		if e.Record == nil {
			filtered = append(filtered, e)
			continue
		}
		for _, s := range statuses {
			if e.Record.Status == s {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}
