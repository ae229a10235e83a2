// Package render draws predicted and observed reports as terminal tables.
package render

import (
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/oracle"
	"github.com/cloudigrade/integrade/pkg/utils"
)

const na = "N/A"

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	return tw
}

func intCell(v *int) string {
	if v == nil {
		return na
	}
	return humanize.Comma(int64(*v))
}

func secondsCell(v *float64) string {
	if v == nil {
		return na
	}
	return humanize.Comma(int64(math.Round(*v)))
}

// Overview prints the predicted account summary.
func Overview(w io.Writer, title string, r *oracle.Report) {
	tw := newTable(w, title)
	tw.AppendHeader(table.Row{"Field", "Expected"})
	ov := r.Overview
	tw.AppendRows([]table.Row{
		{"window", fmt.Sprintf("%s .. %s", r.Window.Start.Format("2006-01-02 15:04"), r.Window.End.Format("2006-01-02 15:04"))},
		{"images", intCell(ov.Images)},
		{"instances", intCell(ov.Instances)},
		{"rhel_instances", intCell(ov.RHELInstances)},
		{"openshift_instances", intCell(ov.OpenShiftInstances)},
		{"rhel_runtime_seconds", secondsCell(ov.RHELRuntimeSeconds)},
		{"openshift_runtime_seconds", secondsCell(ov.OpenShiftRuntimeSeconds)},
		{"rhel_memory_seconds", secondsCell(ov.RHELMemorySeconds)},
		{"openshift_memory_seconds", secondsCell(ov.OpenShiftMemorySeconds)},
		{"rhel_vcpu_seconds", secondsCell(ov.RHELVCPUSeconds)},
		{"openshift_vcpu_seconds", secondsCell(ov.OpenShiftVCPUSeconds)},
		{"rhel_images_challenged", intCell(ov.RHELImagesChallenged)},
		{"openshift_images_challenged", intCell(ov.OpenShiftImagesChallenged)},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tw.Render()
}

// Images prints the predicted image report.
func Images(w io.Writer, r *oracle.Report) {
	tw := newTable(w, "Images")
	tw.AppendHeader(table.Row{"AMI", "RHEL", "RHOCP", "Instances", "Runtime (s)", "Hours", "Memory (GB·s)", "vCPU (s)"})
	for _, iu := range r.Images() {
		tw.AppendRow(table.Row{
			iu.AMIID,
			tagCell(iu.RHEL, iu.RHELChallenged),
			tagCell(iu.OpenShift, iu.OpenShiftChallenged),
			len(iu.InstanceIDs),
			humanize.Comma(int64(math.Round(iu.RuntimeSeconds))),
			utils.RoundUpToTwoDecimals(utils.SecondsToHours(iu.RuntimeSeconds)),
			humanize.Comma(int64(math.Round(iu.MemorySeconds))),
			humanize.Comma(int64(math.Round(iu.VCPUSeconds))),
		})
	}
	if len(r.ByAMI) == 0 {
		tw.AppendRow(table.Row{"(none)", "", "", "", "", "", "", ""})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	tw.Render()
}

func tagCell(on, challenged bool) string {
	s := "no"
	if on {
		s = text.FgHiGreen.Sprint("yes")
	}
	if challenged {
		s += text.FgYellow.Sprint(" (challenged)")
	}
	return s
}

// Graphs prints the hours each usage graph should show.
func Graphs(w io.Writer, r *oracle.Report) {
	tw := newTable(w, "Usage graphs")
	tw.AppendHeader(table.Row{"Dimension", "RHEL", "RHOCP"})
	rhel := r.DimensionHours("rhel")
	openshift := r.DimensionHours("openshift")
	for _, d := range oracle.Dimensions {
		row := table.Row{d.Label(), na, na}
		if !r.Null {
			row[1] = humanize.Comma(int64(rhel[d]))
			row[2] = humanize.Comma(int64(openshift[d]))
		}
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	tw.Render()
}

// Comparison is one field of an expected versus actual check.
type Comparison struct {
	Field    string
	Expected string
	Actual   string
	OK       bool
}

// CompareOverview pairs every overview field of exp and act. Seconds match
// when they are within tolerance (a fraction) of each other.
func CompareOverview(exp oracle.AccountOverview, act api.AccountOverview, tolerance float64) []Comparison {
	ints := []struct {
		field    string
		exp, act *int
	}{
		{"images", exp.Images, act.Images},
		{"instances", exp.Instances, act.Instances},
		{"rhel_instances", exp.RHELInstances, act.RHELInstances},
		{"openshift_instances", exp.OpenShiftInstances, act.OpenShiftInstances},
		{"rhel_images_challenged", exp.RHELImagesChallenged, act.RHELImagesChallenged},
		{"openshift_images_challenged", exp.OpenShiftImagesChallenged, act.OpenShiftImagesChallenged},
	}
	floats := []struct {
		field    string
		exp, act *float64
	}{
		{"rhel_runtime_seconds", exp.RHELRuntimeSeconds, act.RHELRuntimeSeconds},
		{"openshift_runtime_seconds", exp.OpenShiftRuntimeSeconds, act.OpenShiftRuntimeSeconds},
		{"rhel_memory_seconds", exp.RHELMemorySeconds, act.RHELMemorySeconds},
		{"openshift_memory_seconds", exp.OpenShiftMemorySeconds, act.OpenShiftMemorySeconds},
		{"rhel_vcpu_seconds", exp.RHELVCPUSeconds, act.RHELVCPUSeconds},
		{"openshift_vcpu_seconds", exp.OpenShiftVCPUSeconds, act.OpenShiftVCPUSeconds},
	}

	var out []Comparison
	for _, c := range ints {
		out = append(out, Comparison{
			Field:    c.field,
			Expected: intCell(c.exp),
			Actual:   intCell(c.act),
			OK:       (c.exp == nil) == (c.act == nil) && (c.exp == nil || *c.exp == *c.act),
		})
	}
	for _, c := range floats {
		ok := c.exp == nil && c.act == nil
		if c.exp != nil && c.act != nil {
			ok, _ = utils.AreWithinPercentage(*c.exp, *c.act, tolerance)
		}
		out = append(out, Comparison{
			Field:    c.field,
			Expected: secondsCell(c.exp),
			Actual:   secondsCell(c.act),
			OK:       ok,
		})
	}
	return out
}

// Compare prints comparisons and returns how many failed.
func Compare(w io.Writer, title string, rows []Comparison) int {
	tw := newTable(w, title)
	tw.AppendHeader(table.Row{"Field", "Expected", "Actual", ""})
	failed := 0
	for _, c := range rows {
		mark := text.FgHiGreen.Sprint("ok")
		if !c.OK {
			mark = text.FgHiRed.Sprint("MISMATCH")
			failed++
		}
		tw.AppendRow(table.Row{c.Field, c.Expected, c.Actual, mark})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	tw.Render()
	return failed
}
