package groundtruth

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Column aliases accepted in tabular sources, checked in order.
var (
	latAliases  = []string{"lat", "latitude", "y"}
	lonAliases  = []string{"lon", "lng", "longitude", "x"}
	idAliases   = []string{"id", "site_id"}
	nameAliases = []string{"name", "site_name"}
	typeAliases = []string{"site_type", "type"}
)

// LoadCSV reads reference sites from a CSV file with a header row.
func LoadCSV(path string) ([]model.GroundTruthSite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: open csv")
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: read csv")
	}
	return rowsToSites(rows)
}

// LoadXLSX reads reference sites from the first sheet of an XLSX workbook.
func LoadXLSX(path string) ([]model.GroundTruthSite, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("groundtruth: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rowsToSites(rows)
}

// rowsToSites interprets the first row as a header and resolves the
// coordinate and attribute columns through the alias lists.
func rowsToSites(rows [][]string) ([]model.GroundTruthSite, error) {
	if len(rows) == 0 {
		return nil, eris.New("groundtruth: empty table")
	}

	header := map[string]int{}
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	latIdx := findColumn(header, latAliases)
	lonIdx := findColumn(header, lonAliases)
	if latIdx < 0 || lonIdx < 0 {
		return nil, eris.New("groundtruth: table has no latitude/longitude columns")
	}
	idIdx := findColumn(header, idAliases)
	nameIdx := findColumn(header, nameAliases)
	typeIdx := findColumn(header, typeAliases)
	periodIdx := findColumn(header, []string{"period"})

	var sites []model.GroundTruthSite
	for n, row := range rows[1:] {
		lat, err1 := parseCell(row, latIdx)
		lon, err2 := parseCell(row, lonIdx)
		if err1 != nil || err2 != nil {
			continue
		}
		site := model.GroundTruthSite{
			ID:       cell(row, idIdx),
			Name:     cell(row, nameIdx),
			SiteType: cell(row, typeIdx),
			Period:   cell(row, periodIdx),
			Lat:      lat,
			Lon:      lon,
		}
		if site.ID == "" {
			site.ID = fmt.Sprintf("GT_%04d", n+1)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func findColumn(header map[string]int, aliases []string) int {
	for _, a := range aliases {
		if i, ok := header[a]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseCell(row []string, idx int) (float64, error) {
	s := cell(row, idx)
	if s == "" {
		return 0, eris.New("groundtruth: empty cell")
	}
	return strconv.ParseFloat(s, 64)
}
