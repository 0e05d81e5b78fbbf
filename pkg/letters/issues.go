package letters

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/benjaminschreck/go-docreport/pkg/model"
)

// IssuesTable is the id of the defect table in the issues letter.
const IssuesTable = "ISSUES_TABLE"

// Highlight marks cells that need attention.
type Highlight struct {
	// StaleYear flags issues created in that year. Zero disables the check.
	StaleYear int
	// Color replaces "black" in the cell's inline style, e.g. "#C00000".
	Color string
}

// RenderIssues fills the issues letter with one row per issue, in order.
func RenderIssues(t Templates, issues []model.Issue, hl Highlight) ([]byte, error) {
	doc, err := parse(t.Issues)
	if err != nil {
		return nil, err
	}

	table := findElement(doc, atom.Table, IssuesTable)
	if table == nil {
		return nil, fmt.Errorf("issues template has no %s table", IssuesTable)
	}
	tbody, err := descend(table, atom.Tbody)
	if err != nil {
		return nil, err
	}
	row, err := detachRow(tbody, 0)
	if err != nil {
		return nil, err
	}

	for _, issue := range issues {
		clone := cloneNode(row)
		if err := fillIssueRow(clone, issue, hl); err != nil {
			return nil, fmt.Errorf("issue %s: %w", issue.Key, err)
		}
		tbody.AppendChild(clone)
	}

	return render(doc)
}

func fillIssueRow(row *html.Node, issue model.Issue, hl Highlight) error {
	cells := childElements(row, atom.Td)
	if len(cells) < 4 {
		return fmt.Errorf("issue row has %d cells, want 4", len(cells))
	}

	link, err := descend(cells[0], atom.P, atom.Span, atom.A)
	if err != nil {
		return err
	}
	setAttr(link, "href", issue.URL)
	label, err := descend(link, atom.Span)
	if err != nil {
		return err
	}
	setText(label, issue.Key)

	spans := make([]*html.Node, 3)
	for i := range spans {
		if spans[i], err = descend(cells[i+1], atom.P, atom.Span); err != nil {
			return err
		}
	}

	setText(spans[0], issue.Summary)

	setText(spans[1], issue.CreatedLabel())
	if hl.StaleYear != 0 && issue.Created.Year() == hl.StaleYear {
		highlight(spans[1], hl.Color)
	}

	setText(spans[2], issue.Severity)
	if IsSevere(issue.Severity) {
		highlight(spans[2], hl.Color)
	}
	return nil
}

// IsSevere reports whether a severity is blocker or critical.
func IsSevere(severity string) bool {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "blocker", "critical":
		return true
	}
	return false
}

func highlight(n *html.Node, color string) {
	style, _ := attr(n, "style")
	setAttr(n, "style", strings.ReplaceAll(style, "color:black", "color:"+color))
}
