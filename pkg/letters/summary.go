package letters

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/benjaminschreck/go-docreport/pkg/model"
)

// TablesPlaceholder is the id of the div after which the summary tables
// are inserted.
const TablesPlaceholder = "TABLES_PLACEHOLDER"

const spacerStyle = "font-size: 9pt; font-family: 'Open Sans', sans-serif"

// SummaryRow is one report's result on one machine.
type SummaryRow struct {
	Title   string
	URL     string
	Summary model.RunSummary
}

// MachineSection groups the rows of one server machine.
type MachineSection struct {
	Machine string
	Rows    []SummaryRow
}

// JobSection lists the machines a job ran on, in the order they were
// first seen.
type JobSection struct {
	Title    string
	Machines []MachineSection
}

// RenderSummary fills the summary letter with one table per job and
// machine. clients describes the client machines in each table title.
func RenderSummary(t Templates, jobs []JobSection, clients string) ([]byte, error) {
	doc, err := parse(t.Summary)
	if err != nil {
		return nil, err
	}

	placeholder := findElement(doc, atom.Div, TablesPlaceholder)
	if placeholder == nil || placeholder.Parent == nil {
		return nil, fmt.Errorf("summary template has no %s div", TablesPlaceholder)
	}

	last := placeholder
	for _, job := range jobs {
		for _, machine := range job.Machines {
			nodes, err := summarySection(t.SummaryTable, job.Title, machine, clients)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", job.Title, machine.Machine, err)
			}
			for _, n := range nodes {
				last = insertAfter(last, n)
			}
			for range machine.Rows {
				last = insertAfter(last, spacer())
			}
		}
	}

	return render(doc)
}

// summarySection returns the detached body content of a filled table
// template.
func summarySection(tmpl []byte, jobTitle string, machine MachineSection, clients string) ([]*html.Node, error) {
	section, err := parse(tmpl)
	if err != nil {
		return nil, err
	}
	body := findElement(section, atom.Body, "")
	if body == nil {
		return nil, fmt.Errorf("table template has no body")
	}

	title, err := descend(body, atom.P, atom.Span)
	if err != nil {
		return nil, err
	}
	setText(title, SectionTitle(jobTitle, machine.Machine, clients))

	table := findElement(body, atom.Table, "")
	if table == nil {
		return nil, fmt.Errorf("table template has no table")
	}
	tbody, err := descend(table, atom.Tbody)
	if err != nil {
		return nil, err
	}
	row, err := detachRow(tbody, 1)
	if err != nil {
		return nil, err
	}

	for _, r := range machine.Rows {
		clone := cloneNode(row)
		if err := fillSummaryRow(clone, r); err != nil {
			return nil, err
		}
		tbody.AppendChild(clone)
	}

	var nodes []*html.Node
	for body.FirstChild != nil {
		n := body.FirstChild
		body.RemoveChild(n)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func fillSummaryRow(row *html.Node, r SummaryRow) error {
	cells := childElements(row, atom.Td)
	if len(cells) < 6 {
		return fmt.Errorf("summary row has %d cells, want 6", len(cells))
	}

	link, err := descend(cells[0], atom.P, atom.Span, atom.A)
	if err != nil {
		return err
	}
	setAttr(link, "href", r.URL)
	label, err := descend(link, atom.Span)
	if err != nil {
		return err
	}
	setText(label, r.Title)

	values := []string{
		strconv.Itoa(r.Summary.Executed()),
		strconv.Itoa(r.Summary.Passed),
		strconv.Itoa(r.Summary.Failed),
		strconv.Itoa(r.Summary.Errored),
		FormatDuration(r.Summary.ExecutionTime),
	}
	for i, v := range values {
		span, err := descend(cells[i+1], atom.P, atom.Span)
		if err != nil {
			return err
		}
		setText(span, v)
	}
	return nil
}

// SectionTitle builds the heading of one machine's table.
func SectionTitle(jobTitle, machine, clients string) string {
	server := strings.TrimPrefix(machine, "AMD Radeon ")
	if clients == "" {
		return fmt.Sprintf("%s, server — %s:", jobTitle, server)
	}
	return fmt.Sprintf("%s, server — %s, %s:", jobTitle, server, clients)
}

// FormatDuration renders whole seconds as "1h 2m 3s"; hours are omitted
// when zero.
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, total%3600/60, total%60

	var parts []string
	if h > 0 {
		parts = append(parts, strconv.Itoa(h)+"h")
	}
	parts = append(parts, strconv.Itoa(m)+"m", strconv.Itoa(s)+"s")
	return strings.Join(parts, " ")
}

func spacer() *html.Node {
	p := &html.Node{Type: html.ElementNode, DataAtom: atom.P, Data: "p",
		Attr: []html.Attribute{{Key: "class", Val: "MsoNormal"}}}
	span := &html.Node{Type: html.ElementNode, DataAtom: atom.Span, Data: "span",
		Attr: []html.Attribute{{Key: "style", Val: spacerStyle}}}
	op := &html.Node{Type: html.ElementNode, Data: "o:p"}
	op.AppendChild(&html.Node{Type: html.TextNode, Data: "\u00a0"})
	span.AppendChild(op)
	p.AppendChild(span)
	return p
}
