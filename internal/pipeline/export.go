package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/pkg/utils"
)

// Export formats
const (
	FormatJSON    = "json"
	FormatRecords = "records"
	FormatCSV     = "csv"
	FormatNPZ     = "npz"
)

// DefaultExportPrefix keeps exports from overwriting archives written next to them
const DefaultExportPrefix = "feax"

var formatExt = map[string]string{
	FormatJSON:    ".json",
	FormatRecords: ".records.json",
	FormatCSV:     ".csv",
	FormatNPZ:     ".npz",
}

// ValidateFormats rejects unknown export formats
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if _, ok := formatExt[strings.ToLower(f)]; !ok {
			return fmt.Errorf("%w: unknown export format %q", errs.ErrInvalidConfig, f)
		}
	}
	return nil
}

// ExportManager writes the result of each archive in every configured format
type ExportManager struct {
	Spec   model.ExportSpec
	Output *utils.OutputManager
}

// NewExportManager builds an export manager; JSON is written when no format
// is configured
func NewExportManager(spec model.ExportSpec) *ExportManager {
	if len(spec.Formats) == 0 {
		spec.Formats = []string{FormatJSON}
	}
	if spec.Prefix == "" {
		spec.Prefix = DefaultExportPrefix
	}
	return &ExportManager{Spec: spec, Output: utils.NewOutputManager(spec.Directory)}
}

// Export writes res in every format. A failing format does not stop the others.
func (em *ExportManager) Export(res *model.Result) []model.ExportResult {
	out := make([]model.ExportResult, 0, len(em.Spec.Formats))
	for _, format := range em.Spec.Formats {
		format = strings.ToLower(format)
		result := model.ExportResult{Type: format, ExportedAt: time.Now()}

		path, err := em.Output.OutputPath(res.Archive, em.Spec.Prefix, formatExt[format])
		if err == nil {
			result.Path = path
			err = em.write(format, path, res)
		}
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Success = true
			result.RecordCount = res.RecordCount()
		}
		out = append(out, result)
	}
	return out
}

func (em *ExportManager) write(format, path string, res *model.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	switch format {
	case FormatJSON:
		err = WriteJSON(w, res)
	case FormatRecords:
		err = writeRecords(w, res)
	case FormatCSV:
		err = writeCSV(w, res)
	case FormatNPZ:
		err = writeNPZ(w, res)
	default:
		err = fmt.Errorf("%w: unknown export format %q", errs.ErrInvalidConfig, format)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

// WriteJSON writes the full result tree
func WriteJSON(w io.Writer, res *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// ReadJSON loads a result written by WriteJSON
func ReadJSON(path string) (*model.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var res model.Result
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if res.Steps == nil {
		res.Steps = make(map[string]map[string]map[string]*model.FieldSeries)
	}
	return &res, nil
}

// writeRecords writes step -> region -> field -> [{TIME, component: value}],
// one entry per frame, or per frame and row for unreduced series
func writeRecords(w io.Writer, res *model.Result) error {
	tree := make(map[string]map[string]map[string][]map[string]float64)
	for _, s := range res.Series() {
		if tree[s.Step] == nil {
			tree[s.Step] = make(map[string]map[string][]map[string]float64)
		}
		if tree[s.Step][s.Region] == nil {
			tree[s.Step][s.Region] = make(map[string][]map[string]float64)
		}

		var rows []map[string]float64
		for _, rec := range s.Records {
			for r, values := range rec.Mean {
				row := map[string]float64{"TIME": rec.Time}
				if len(rec.Mean) > 1 {
					row["ROW"] = float64(r)
				}
				for c, label := range s.Components {
					if c < len(values) {
						row[label] = values[c]
					}
				}
				rows = append(rows, row)
			}
		}
		tree[s.Step][s.Region][s.Field] = rows
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}

func writeCSV(w io.Writer, res *model.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "region", "mesh_type", "field", "strategy", "frame", "time", "row", "component", "mean", "spread"}); err != nil {
		return err
	}
	for _, s := range res.Series() {
		for _, rec := range s.Records {
			for r, values := range rec.Mean {
				for c, label := range s.Components {
					var spread float64
					if r < len(rec.Spread) && c < len(rec.Spread[r]) {
						spread = rec.Spread[r][c]
					}
					err := cw.Write([]string{
						s.Step, s.Region, s.Kind.String(), s.Field, s.Strategy,
						strconv.Itoa(rec.Frame),
						strconv.FormatFloat(rec.Time, 'g', -1, 64),
						strconv.Itoa(r),
						label,
						strconv.FormatFloat(values[c], 'g', -1, 64),
						strconv.FormatFloat(spread, 'g', -1, 64),
					})
					if err != nil {
						return err
					}
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// NPZKey builds the array key of one series member
func NPZKey(s *model.FieldSeries, member string) string {
	return strings.Join([]string{s.Step, s.Region, s.Kind.String(), s.Field, member}, "|")
}

// writeNPZ stores each series as data, std, time and components arrays.
// data and std are (frames, components), or (frames, rows, components)
// for unreduced series.
func writeNPZ(w io.Writer, res *model.Result) error {
	npz := newNPZWriter(w)
	for _, s := range res.Series() {
		frames := len(s.Records)
		comps := len(s.Components)
		rows := 1
		if frames > 0 {
			rows = len(s.Records[0].Mean)
		}

		data := make([]float64, 0, frames*rows*comps)
		std := make([]float64, 0, frames*rows*comps)
		times := make([]float64, 0, frames)
		for _, rec := range s.Records {
			if len(rec.Mean) != rows || len(rec.Spread) != rows {
				return fmt.Errorf("%s: frame %d has %d rows, expected %d", NPZKey(s, "data"), rec.Frame, len(rec.Mean), rows)
			}
			for r := 0; r < rows; r++ {
				if len(rec.Mean[r]) != comps || len(rec.Spread[r]) != comps {
					return fmt.Errorf("%s: frame %d row %d has the wrong component count", NPZKey(s, "data"), rec.Frame, r)
				}
				data = append(data, rec.Mean[r]...)
				std = append(std, rec.Spread[r]...)
			}
			times = append(times, rec.Time)
		}

		shape := []int{frames, comps}
		if rows > 1 {
			shape = []int{frames, rows, comps}
		}
		if err := npz.Floats(NPZKey(s, "data"), shape, data); err != nil {
			return err
		}
		if err := npz.Floats(NPZKey(s, "std"), shape, std); err != nil {
			return err
		}
		if err := npz.Floats(NPZKey(s, "time"), []int{frames}, times); err != nil {
			return err
		}
		if err := npz.Strings(NPZKey(s, "components"), s.Components); err != nil {
			return err
		}
	}
	return npz.Close()
}
