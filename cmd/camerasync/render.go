package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"camerasync/internal/catalog"
	"camerasync/internal/deps"
)

type lineKind int

const (
	lineInfo lineKind = iota
	lineOK
	lineWarn
	lineError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const labelWidth = 20

// renderer writes status output, coloured only when out is a terminal.
type renderer struct {
	out   io.Writer
	color bool
}

func newRenderer(out io.Writer) *renderer {
	r := &renderer{out: out}
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		r.color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return r
}

func (r *renderer) paint(kind lineKind, s string) string {
	if !r.color {
		return s
	}
	var code string
	switch kind {
	case lineOK:
		code = ansiGreen
	case lineWarn:
		code = ansiYellow
	case lineError:
		code = ansiRed
	default:
		code = ansiBlue
	}
	return code + s + ansiReset
}

func (r *renderer) section(title string) {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	fmt.Fprintln(r.out, r.paint(lineInfo, heading))
	fmt.Fprintln(r.out, r.paint(lineInfo, strings.Repeat("-", len(heading))))
}

func (r *renderer) line(label string, kind lineKind, message string) {
	tag := map[lineKind]string{lineOK: "OK", lineWarn: "WARN", lineError: "ERROR"}[kind]
	if tag == "" {
		tag = "INFO"
	}
	out := fmt.Sprintf("  %-*s [%s]", labelWidth, label+":", tag)
	if message != "" {
		out += " " + message
	}
	fmt.Fprintln(r.out, r.paint(kind, out))
}

// stateCounts prints one line per file state.
func (r *renderer) stateCounts(counts map[catalog.State]int) {
	r.section("Files")
	for _, state := range []catalog.State{catalog.StateSeen, catalog.StateSynced, catalog.StateProcessed} {
		kind := lineInfo
		if state == catalog.StateProcessed {
			kind = lineOK
		}
		r.line(state.String(), kind, strconv.Itoa(counts[state]))
	}
}

// checks prints dependency results. Optional failures are warnings.
func (r *renderer) checks(title string, statuses []deps.Status) {
	r.section(title)
	for _, s := range statuses {
		switch {
		case s.Available:
			r.line(s.Name, lineOK, s.Command)
		case s.Optional:
			r.line(s.Name, lineWarn, s.Detail)
		default:
			r.line(s.Name, lineError, s.Detail)
		}
	}
}

// groupTable renders the image groups as a rounded table.
func (r *renderer) groupTable(groups []catalog.GroupSummary) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Group", "Files", "Processed", "Done"})
	for _, g := range groups {
		tw.AppendRow(table.Row{g.Name, g.Files, g.Processed, yesNo(g.Done())})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(r.out, tw.Render())
}
