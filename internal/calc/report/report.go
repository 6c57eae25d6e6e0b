package report

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	network "Waternet/internal/calc/network"
)

type Meta struct {
	Project string `json:"project"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Notes   string `json:"notes"`
}

type column struct {
	title string
	width float64
}

var (
	nodeColumns = []column{
		{"Node", 30}, {"Type", 24}, {"Elev, m", 24}, {"Demand, L/s", 28}, {"HGL, m", 28}, {"Pressure, m", 28},
	}
	pipeColumns = []column{
		{"Pipe", 22}, {"From", 20}, {"To", 20}, {"L, m", 18}, {"D, mm", 18},
		{"Q, L/s", 22}, {"v, m/s", 20}, {"hf, m", 20}, {"f", 18},
	}
)

// Write renders the analysis as an A4 PDF.
func Write(w io.Writer, meta Meta, res network.Result) error {
	if meta.Title == "" {
		meta.Title = "Pipe Network Analysis"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, meta.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Project: %s", meta.Project))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Author: %s", meta.Author))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", time.Now().Format("2006-01-02")))
	pdf.Ln(10)

	heading(pdf, "Summary")
	status := "converged"
	if !res.Converged {
		status = "NOT converged"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Method: %s", res.Method))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Solver: %s after %d iterations (last change %.3g m)", status, res.Iterations, res.MaxChange))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Nodes: %d, pipes: %d", len(res.Nodes), len(res.Pipes)))
	pdf.Ln(10)

	heading(pdf, "Nodes")
	tableHeader(pdf, nodeColumns)
	for _, n := range res.Nodes {
		kind := "junction"
		if n.IsReservoir {
			kind = "reservoir"
		}
		tableRow(pdf, nodeColumns, n.ID, kind, f2(n.Elevation), f2(n.Demand), f2(n.HGL), f2(n.Pressure))
	}
	pdf.Ln(6)

	heading(pdf, "Pipes")
	tableHeader(pdf, pipeColumns)
	for _, p := range res.Pipes {
		friction := "-"
		if p.FrictionFactor > 0 {
			friction = fmt.Sprintf("%.4f", p.FrictionFactor)
		}
		tableRow(pdf, pipeColumns, p.ID, p.StartNode, p.EndNode, f2(p.Length), f2(p.Diameter),
			f2(p.Flow), f2(p.Velocity), f2(p.Headloss), friction)
	}
	pdf.Ln(6)

	heading(pdf, "Warnings")
	if len(res.Warnings) == 0 {
		pdf.Cell(0, 6, "No warnings.")
		pdf.Ln(6)
	}
	for _, wr := range res.Warnings {
		pdf.MultiCell(0, 6, fmt.Sprintf("[%s] %s", wr.Severity, wr.Message), "", "L", false)
	}
	pdf.Ln(4)

	if len(res.Recommendations) > 0 {
		heading(pdf, "Recommendations")
		for _, rec := range res.Recommendations {
			pdf.MultiCell(0, 6, "- "+rec.Message, "", "L", false)
		}
		pdf.Ln(4)
	}

	if meta.Notes != "" {
		heading(pdf, "Notes")
		pdf.MultiCell(0, 6, meta.Notes, "", "L", false)
	}

	return pdf.Output(w)
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, text)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
}

func tableHeader(pdf *gofpdf.Fpdf, cols []column) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 236, 245)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func tableRow(pdf *gofpdf.Fpdf, cols []column, cells ...string) {
	for i, c := range cols {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(c.width, 6, cells[i], "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
