package replay

import "github.com/thebtf/slidetrace/pkg/models"

// ClickPaths groups click points into exploration segments for the audit
// overlay. A segment ends at every reset_to_fit or slide_ready event: those
// mark a fresh exploration sequence, and segments are never connected across
// them. A single-click segment renders as an isolated marker, not a line.
func ClickPaths(events []models.Event) [][]models.Point {
	var segments [][]models.Point
	var current []models.Point

	flush := func() {
		if len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
	}

	for _, ev := range events {
		switch ev.Kind {
		case models.KindResetToFit, models.KindSlideReady:
			flush()
		case models.KindClickZoomIn:
			if ev.ClickPoint != nil {
				current = append(current, *ev.ClickPoint)
			}
		}
	}
	flush()
	return segments
}
