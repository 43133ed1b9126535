package server

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/specto/internal/coordinator"
)

//go:generate templ generate -f status_page.templ

var titleCase = cases.Title(language.English)

// stateLabel turns a state name such as "building" into "Building".
func stateLabel(state string) string {
	return titleCase.String(state)
}

func buildCounts(counts coordinator.BuildCounts) string {
	return fmt.Sprintf("%d (%d succeeded, %d failed)", counts.Total, counts.Succeeded, counts.Failed)
}

func buildTiming(last *coordinator.BuildStatus) string {
	return fmt.Sprintf("at %s in %d ms", last.FinishedAt.Format(time.TimeOnly), last.DurationMs)
}
