package report

import (
	"strings"
	"testing"

	"histfit/domain/results"
)

func sampleFitRecord() *results.FitRecord {
	return &results.FitRecord{
		ID:  "fit-1",
		POI: "mu",
		Parameters: []results.ParamEstimate{
			{Name: "mu", Value: 1.05, Uncertainty: 0.55, IsPOI: true},
			{Name: "bkg_norm", Value: 0.98, Uncertainty: 0.04},
		},
		Pulls:  []results.PullRecord{{Name: "bkg_norm", Pull: -0.5}},
		TwoNLL: 10.2,
	}
}

func TestFitMarkdown(t *testing.T) {
	md := NewGenerator().FitMarkdown(sampleFitRecord())

	for _, want := range []string{
		"# Fit fit-1",
		"mu (POI)",
		"bkg_norm",
		"## Pulls",
		"-2 log L = 10.2",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

func TestFitMarkdownWithoutPulls(t *testing.T) {
	record := sampleFitRecord()
	record.Pulls = nil
	md := NewGenerator().FitMarkdown(record)
	if strings.Contains(md, "## Pulls") {
		t.Error("pull section should be omitted when there are no pulls")
	}
}

func TestScanMarkdown(t *testing.T) {
	record := &results.ScanRecord{
		ID:        "scan-1",
		Parameter: "mu",
		Points: []results.ScanPoint{
			{Value: 0.5, DeltaNLL: 1.2},
			{Value: 1.0, DeltaNLL: 0.0},
		},
		BestFitPOI:    1.0,
		BestFitTwoNLL: 10.2,
	}

	md := NewGenerator().ScanMarkdown(record)
	for _, want := range []string{"# Profile scan of mu", "| 0.5000 | 1.2000 |", "| 1.0000 | 0.0000 |"} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	html := string(NewGenerator().RenderHTML(NewGenerator().FitMarkdown(sampleFitRecord())))

	if !strings.Contains(html, "<table>") {
		t.Error("expected the parameter table to render as an HTML table")
	}
	if !strings.Contains(html, "<h1") {
		t.Error("expected the title to render as a heading")
	}
}
