package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/ernie/range-dashboard/internal/domain"
	"github.com/ernie/range-dashboard/internal/mirror"
)

const feedTimeLayout = "15:04:05"

// view is everything the dashboard shows at one moment
type view struct {
	Status domain.Status
	State  mirror.State
	Feed   []mirror.FeedEntry
}

// renderDashboard writes the full dashboard. Width truncates long lines;
// feedLines limits the feed (0 shows all of it).
func renderDashboard(out io.Writer, v view, width, feedLines int) {
	line := func(s string) {
		fmt.Fprintln(out, clip(s, width))
	}

	line(fmt.Sprintf("Status: %s", v.Status))
	line(v.State.Game.Describe())
	line("")

	renderTargets(out, v.State.Targets)
	fmt.Fprintln(out)
	renderPlayers(out, v.State.Players)
	fmt.Fprintln(out)
	renderScores(out, v.State.ScoresTargets, v.State.ScoresPlayers)
	fmt.Fprintln(out)

	line("Feed:")
	feed := v.Feed
	if feedLines > 0 && len(feed) > feedLines {
		feed = feed[:feedLines]
	}
	if len(feed) == 0 {
		line("  (no hits yet)")
	}
	for _, e := range feed {
		line("  " + feedLine(e))
	}
}

// clip cuts s to at most width runes; width <= 0 disables it
func clip(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func feedLine(e mirror.FeedEntry) string {
	return e.At.Local().Format(feedTimeLayout) + " " + e.Text
}

func renderTargets(out io.Writer, targets []domain.Target) {
	if len(targets) == 0 {
		fmt.Fprintln(out, "No targets")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tNAME\tARMED\tLED\tTIME")
	fmt.Fprintln(w, "------\t----\t-----\t---\t----")
	for _, t := range targets {
		armed := "-"
		if t.Active {
			armed = "yes"
		}
		name := t.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\n", t.Key(), name, armed, t.DisplayColor(), t.DisplayTimeMs())
	}
	w.Flush()
}

func renderPlayers(out io.Writer, players []domain.Player) {
	if len(players) == 0 {
		fmt.Fprintln(out, "No players")
		return
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.ID))
	}
	fmt.Fprintf(out, "Players: %s\n", strings.Join(names, ", "))
}

func renderScores(out io.Writer, targets []domain.TargetScore, players []domain.PlayerScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORES\tHITS")
	fmt.Fprintln(w, "------\t----")
	for _, s := range targets {
		fmt.Fprintf(w, "%s\t%d\n", s.Key(), s.Hits)
	}
	for _, s := range players {
		fmt.Fprintf(w, "%s\t%d\n", s.Label(), s.Hits)
	}
	w.Flush()
}
