package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/afero"
	"golang.org/x/net/html"
)

// Output file names
const (
	FileReportJSON   = "report.json"
	FileOutlineJSON  = "presentation_outline.json"
	FileReportHTML   = "report.html"
	FileSummaryText  = "analysis_summary.txt"
	FileInsightsJSON = "llm_insights.json"
	FileInsightsMD   = "llm_insights.md"
)

// DiscoverCharts lists the chart pages in dir, captioned with each page's
// <title>. Pages without a title use their file name.
func DiscoverCharts(fs afero.Fs, dir string) ([]model.ChartRef, error) {
	matches, err := afero.Glob(fs, filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	sort.Strings(matches)

	var refs []model.ChartRef
	for _, path := range matches {
		title, err := pageTitle(fs, path)
		if err != nil {
			return nil, err
		}
		file := filepath.Base(path)
		if title == "" {
			title = strings.TrimSuffix(file, filepath.Ext(file))
		}
		refs = append(refs, model.ChartRef{Title: title, File: file})
	}
	return refs, nil
}

func pageTitle(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	return findTitle(doc), nil
}

// findTitle returns the text of the first <title> element
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var buf strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				buf.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// WriteJSON writes v as indented JSON, creating parent directories
func WriteJSON(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(fs, path, append(data, '\n'))
}

// WriteFile writes data to path, creating parent directories
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Save writes report.json, presentation_outline.json and report.html into dir.
// chartsDir is where the chart pages live; the HTML report links to them.
func Save(fs afero.Fs, dir, chartsDir string, r *model.Report) ([]string, error) {
	paths := []string{
		filepath.Join(dir, FileReportJSON),
		filepath.Join(dir, FileOutlineJSON),
		filepath.Join(dir, FileReportHTML),
	}

	if err := WriteJSON(fs, paths[0], r); err != nil {
		return nil, err
	}
	if err := WriteJSON(fs, paths[1], Outline(r)); err != nil {
		return nil, err
	}

	base, err := filepath.Rel(dir, chartsDir)
	if err != nil {
		base = chartsDir
	}
	page, err := HTML(r, filepath.ToSlash(base))
	if err != nil {
		return nil, err
	}
	if err := WriteFile(fs, paths[2], page); err != nil {
		return nil, err
	}

	return paths, nil
}

// SaveInsights writes llm_insights.json and llm_insights.md into dir
func SaveInsights(fs afero.Fs, dir string, set *model.InsightSet) ([]string, error) {
	jsonPath := filepath.Join(dir, FileInsightsJSON)
	mdPath := filepath.Join(dir, FileInsightsMD)

	if err := WriteJSON(fs, jsonPath, set); err != nil {
		return nil, err
	}
	md, err := InsightsMarkdown(set)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(fs, mdPath, []byte(md)); err != nil {
		return nil, err
	}
	return []string{jsonPath, mdPath}, nil
}
