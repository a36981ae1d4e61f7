package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/types"
)

// ExcelSource reads work items from a master spreadsheet. Column
// positions are detected from header names, so exports with shuffled
// columns still load.
type ExcelSource struct {
	path         string
	audioBaseURL string
	sasToken     string
}

// NewExcelSource creates a source over the spreadsheet at path.
func NewExcelSource(path, audioBaseURL, sasToken string) *ExcelSource {
	return &ExcelSource{path: path, audioBaseURL: audioBaseURL, sasToken: sasToken}
}

// Items loads work items from the first sheet in row order.
func (s *ExcelSource) Items(ctx context.Context) ([]types.WorkItem, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	pathIdx := -1
	urlIdx := -1
	directionIdx := -1
	dateIdx := -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "url") || strings.Contains(l, "link"):
			if urlIdx == -1 {
				urlIdx = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "record") || strings.Contains(l, "path"):
			if pathIdx == -1 {
				pathIdx = i
			}
		case strings.Contains(l, "direction"):
			if directionIdx == -1 {
				directionIdx = i
			}
		case strings.Contains(l, "evaluation") || strings.Contains(l, "date"):
			if dateIdx == -1 {
				dateIdx = i
			}
		}
	}
	if pathIdx == -1 && urlIdx == -1 {
		return nil, fmt.Errorf("no audio path or URL column found in header")
	}

	log := logger.New().WithField("component", "metadata")

	var out []types.WorkItem
	for i, r := range rows {
		if i == 0 {
			continue
		}
		item := types.WorkItem{}
		if pathIdx >= 0 && pathIdx < len(r) {
			item.SourcePath = strings.ReplaceAll(strings.TrimSpace(r[pathIdx]), "\\", "/")
		}
		if urlIdx >= 0 && urlIdx < len(r) {
			item.AudioURL = strings.TrimSpace(r[urlIdx])
		}
		if directionIdx >= 0 && directionIdx < len(r) {
			item.Direction = strings.TrimSpace(r[directionIdx])
		}
		if dateIdx >= 0 && dateIdx < len(r) {
			item.EvaluationDate = strings.TrimSpace(r[dateIdx])
		}
		if item.SourcePath == "" && item.AudioURL == "" {
			// skip unusable rows quietly
			continue
		}
		if item.SourcePath == "" {
			item.SourcePath = item.AudioURL
		}
		out = append(out, ResolveAudioURL(item, s.audioBaseURL, s.sasToken))
	}

	log.WithField("items", len(out)).Info("loaded work items from spreadsheet")
	return out, nil
}
