package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sitebook/internal/core"
	"sitebook/internal/storage"
)

// CopyFlags selects which categories CopyDay carries over. Replace
// overwrites rows already present on the target day; without it,
// existing target rows win and the source rows for that category are
// skipped.
type CopyFlags struct {
	Civil      bool
	Department bool
	Material   bool
	Note       bool
	Replace    bool
}

// DayCopyService replays yesterday's sheet onto a target date, a shortcut
// for crews that barely change between days.
type DayCopyService struct {
	store     storage.Store
	publisher DayEventPublisher
}

func NewDayCopyService(store storage.Store, publisher DayEventPublisher) *DayCopyService {
	return &DayCopyService{store: store, publisher: publisher}
}

// CopyDay copies stored rows from target-1 to target in one transaction.
// Stored amounts travel verbatim, no recomputation against current rates.
// Returns whether anything was written.
func (s *DayCopyService) CopyDay(ctx context.Context, siteID int64, target core.Date, flags CopyFlags) (bool, error) {
	if err := target.Validate(); err != nil {
		return false, err
	}
	source := target.AddDays(-1)
	changed := false

	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetSite(ctx, siteID); err != nil {
			return fmt.Errorf("site %d: %w", siteID, err)
		}
		if flags.Civil {
			n, err := s.copyCivil(ctx, tx, siteID, source, target, flags.Replace)
			if err != nil {
				return err
			}
			changed = changed || n
		}
		if flags.Department {
			n, err := s.copyDepartments(ctx, tx, siteID, source, target, flags.Replace)
			if err != nil {
				return err
			}
			changed = changed || n
		}
		if flags.Material {
			n, err := s.copyMaterials(ctx, tx, siteID, source, target, flags.Replace)
			if err != nil {
				return err
			}
			changed = changed || n
		}
		if flags.Note {
			n, err := s.copyNote(ctx, tx, siteID, source, target, flags.Replace)
			if err != nil {
				return err
			}
			changed = changed || n
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed && s.publisher != nil {
		if err := s.publisher.PublishDayCopied(ctx, siteID, target); err != nil {
			slog.WarnContext(ctx, "failed to publish day_copied event",
				"site_id", siteID, "date", target.String(), "error", err)
		}
	}
	return changed, nil
}

func (s *DayCopyService) copyCivil(ctx context.Context, tx storage.Store, siteID int64, source, target core.Date, replace bool) (bool, error) {
	srcFilter := storage.RangeFilter{From: source, To: source, SiteID: siteID}
	work, err := tx.ListCivilWork(ctx, srcFilter)
	if err != nil {
		return false, err
	}
	advances, err := tx.ListCivilAdvances(ctx, srcFilter)
	if err != nil {
		return false, err
	}

	existing := make(map[int64]bool)
	if !replace {
		targetRows, err := tx.ListCivilWork(ctx, storage.RangeFilter{From: target, To: target, SiteID: siteID})
		if err != nil {
			return false, err
		}
		for _, w := range targetRows {
			existing[w.TeamID] = true
		}
	}

	srcAdvance := make(map[int64]bool, len(advances))
	for _, a := range advances {
		srcAdvance[a.TeamID] = true
	}

	changed := false
	for _, w := range work {
		if existing[w.TeamID] {
			continue
		}
		w.ID = 0
		w.Date = target
		if err := tx.UpsertCivilWork(ctx, w); err != nil {
			return false, err
		}
		// The copied row's stored total was computed against the source
		// day's advance; a stale target advance would break
		// total = labour - advance for the key. Replacing the work row
		// replaces the whole (site, team, date) state.
		if replace && !srcAdvance[w.TeamID] {
			if err := tx.DeleteCivilAdvance(ctx, siteID, w.TeamID, target); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return false, err
			}
		}
		changed = true
	}
	// Advance rows ride along with the civil flag: they belong to the
	// same (site, team, date) key.
	for _, a := range advances {
		if existing[a.TeamID] {
			continue
		}
		a.ID = 0
		a.Date = target
		if err := tx.UpsertCivilAdvance(ctx, a); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

func (s *DayCopyService) copyDepartments(ctx context.Context, tx storage.Store, siteID int64, source, target core.Date, replace bool) (bool, error) {
	work, err := tx.ListDepartmentWork(ctx, storage.RangeFilter{From: source, To: source, SiteID: siteID})
	if err != nil {
		return false, err
	}

	existing := make(map[int64]bool)
	if !replace {
		targetRows, err := tx.ListDepartmentWork(ctx, storage.RangeFilter{From: target, To: target, SiteID: siteID})
		if err != nil {
			return false, err
		}
		for _, w := range targetRows {
			existing[w.DepartmentID] = true
		}
	}

	changed := false
	for _, w := range work {
		if existing[w.DepartmentID] {
			continue
		}
		w.ID = 0
		w.Date = target
		if err := tx.UpsertDepartmentWork(ctx, w); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

func (s *DayCopyService) copyMaterials(ctx context.Context, tx storage.Store, siteID int64, source, target core.Date, replace bool) (bool, error) {
	work, err := tx.ListMaterials(ctx, storage.RangeFilter{From: source, To: source, SiteID: siteID})
	if err != nil {
		return false, err
	}
	if len(work) == 0 {
		return false, nil
	}

	// Materials have no per-line key, so without Replace the copy is
	// all-or-nothing: any existing target row blocks it.
	if !replace {
		targetRows, err := tx.ListMaterials(ctx, storage.RangeFilter{From: target, To: target, SiteID: siteID})
		if err != nil {
			return false, err
		}
		if len(targetRows) > 0 {
			return false, nil
		}
	}

	copies := make([]core.MaterialEntry, len(work))
	for i, m := range work {
		m.ID = 0
		m.Date = target
		copies[i] = m
	}
	if err := tx.ReplaceMaterials(ctx, siteID, target, copies); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DayCopyService) copyNote(ctx context.Context, tx storage.Store, siteID int64, source, target core.Date, replace bool) (bool, error) {
	note, err := tx.GetNote(ctx, siteID, source)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !replace {
		if _, err := tx.GetNote(ctx, siteID, target); err == nil {
			return false, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return false, err
		}
	}
	if err := tx.UpsertNote(ctx, siteID, target, note.Description); err != nil {
		return false, err
	}
	return true, nil
}
