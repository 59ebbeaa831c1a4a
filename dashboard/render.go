package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Render writes the snapshot as plain-text tables.
func Render(w io.Writer, snap Snapshot, now time.Time) {
	if snap.State == StateIdle || snap.Summary == nil {
		fmt.Fprintln(w, "Loading analytics...")
		return
	}

	view := BuildView(snap.Summary, now)
	title := "All forms"
	if snap.FormID != "" && len(view.ByForm) > 0 {
		title = view.ByForm[0].FormTitle
	}
	fmt.Fprintf(w, "== %s ==\n", title)

	stats := tablewriter.NewWriter(w)
	stats.SetHeader([]string{"Forms", "Responses", "Avg / form", "This week"})
	stats.Append([]string{
		strconv.Itoa(view.TotalForms),
		strconv.FormatInt(view.TotalResponses, 10),
		strconv.FormatFloat(view.AveragePerForm, 'f', 1, 64),
		strconv.Itoa(view.ThisWeek),
	})
	stats.Render()

	if snap.FormID == "" && len(view.ByForm) > 0 {
		byForm := tablewriter.NewWriter(w)
		byForm.SetHeader([]string{"Form", "Responses"})
		for _, f := range view.ByForm {
			byForm.Append([]string{f.FormTitle, strconv.FormatInt(f.ResponseCount, 10)})
		}
		byForm.Render()
	}

	for _, field := range view.Fields {
		renderField(w, field)
	}

	if len(view.Recent) > 0 {
		recent := tablewriter.NewWriter(w)
		recent.SetHeader([]string{"Recent", "Submitted"})
		for _, r := range view.Recent {
			recent.Append([]string{r.FormTitle, r.SubmittedAt.Local().Format("2006-01-02 15:04:05")})
		}
		recent.Render()
	}
}

func renderField(w io.Writer, field FieldView) {
	table := tablewriter.NewWriter(w)
	table.SetCaption(true, fmt.Sprintf("%s (%s)", field.Label, field.Type))

	switch {
	case field.Rating != nil:
		table.SetHeader([]string{"Rating", "Count"})
		for i, n := range field.Rating.Histogram {
			table.Append([]string{strings.Repeat("*", i+1), strconv.Itoa(n)})
		}
		table.SetFooter([]string{"Mean", strconv.FormatFloat(field.Rating.Mean, 'f', 1, 64)})
	case field.Text != nil:
		table.SetHeader([]string{"Latest answers"})
		for _, s := range field.Text.Samples {
			table.Append([]string{s})
		}
		table.SetFooter([]string{fmt.Sprintf("%d answers, %.1f words avg", field.Text.Count, field.Text.AvgWords)})
	default:
		table.SetHeader([]string{"Option", "Count"})
		for _, c := range field.Choices {
			table.Append([]string{c.Option, strconv.Itoa(c.Count)})
		}
	}
	table.Render()
}
