// Package report is the boundary to whatever renders a wealth distribution.
// The simulation only hands over values plus display metadata.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/constraints"
)

// Request is an opaque visualization request.
type Request struct {
	Values []uint64 `json:"values"`
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
}

// NewWealthRequest wraps a pooled wealth sample with the standard labels.
func NewWealthRequest(sample []uint64) Request {
	return Request{
		Values: sample,
		Title:  "Wealth distribution",
		XLabel: "Wealth",
		YLabel: "Number of agents",
	}
}

// Reporter renders a Request.
type Reporter interface {
	Render(req Request) error
}

// Bin is one discrete histogram bucket.
type Bin[T constraints.Integer] struct {
	Value T   `json:"value"`
	Count int `json:"count"`
}

// Tally counts occurrences of each distinct value, sorted by value.
func Tally[T constraints.Integer](values []T) []Bin[T] {
	counts := make(map[T]int)
	for _, v := range values {
		counts[v]++
	}

	bins := make([]Bin[T], 0, len(counts))
	for v, c := range counts {
		bins = append(bins, Bin[T]{Value: v, Count: c})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Value < bins[j].Value })
	return bins
}

// TextReporter writes a discrete bar chart as plain text.
type TextReporter struct {
	W     io.Writer
	Width int // Bar width of the most frequent bin; default 50
}

// Render writes one row per wealth value.
func (r *TextReporter) Render(req Request) error {
	width := r.Width
	if width <= 0 {
		width = 50
	}

	bins := Tally(req.Values)
	maxCount := 0
	for _, b := range bins {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s values)\n", req.Title, humanize.Comma(int64(len(req.Values))))
	fmt.Fprintf(&sb, "%8s | %s\n", req.XLabel, req.YLabel)
	for _, b := range bins {
		bar := b.Count * width / maxCount
		if bar == 0 {
			bar = 1
		}
		fmt.Fprintf(&sb, "%8d | %s %s\n", b.Value, strings.Repeat("#", bar), humanize.Comma(int64(b.Count)))
	}

	_, err := io.WriteString(r.W, sb.String())
	return err
}
