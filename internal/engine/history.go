package engine

import (
	"context"
	"fmt"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
)

// SaveNote пишет запись истории контроля и сбрасывает кэши заметок, страниц и сводки.
func (e *Engine) SaveNote(ctx context.Context, in catalog.NoteInput) (catalog.HistoryEntry, error) {
	if e.src.History == nil {
		return catalog.HistoryEntry{}, fmt.Errorf("history: %w", ErrNotConfigured)
	}
	ctx, span := e.tracer.Start(ctx, "engine.SaveNote")
	defer span.End()

	entry, err := e.src.History.SaveNote(ctx, in)
	if err != nil {
		span.RecordError(err)
		return catalog.HistoryEntry{}, err
	}
	n, _ := e.cache.Invalidate(cache.GroupNotes)
	e.log.Info("control note saved", "item_id", entry.ItemID, "note_id", entry.ID, "cache_removed", n)
	return entry, nil
}
