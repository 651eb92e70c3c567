package pipeline

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// MaxPrincipalSuffix is appended to the field name to label the derived column
const MaxPrincipalSuffix = "MAXPRINC"

// tensor fields that get a maximum principal column; strains store
// engineering shear and are halved before the eigenproblem
var tensorFields = map[string]bool{"S": true, "E": true, "LE": true}
var engineeringShear = map[string]bool{"E": true, "LE": true}

// IsTensorField reports whether a field gets a derived maximum principal column
func IsTensorField(field string) bool { return tensorFields[strings.ToUpper(field)] }

type tensorLayout struct {
	// index of the row value holding component (i,j), -1 when not stored
	at          [3][3]int
	shearFactor float64
	planar      bool
}

func newTensorLayout(field string, components []string) (tensorLayout, error) {
	l := tensorLayout{shearFactor: 1}
	if engineeringShear[strings.ToUpper(field)] {
		l.shearFactor = 0.5
	}
	for i := range l.at {
		for j := range l.at[i] {
			l.at[i][j] = -1
		}
	}

	found := 0
	for col, label := range components {
		suffix := strings.TrimPrefix(strings.ToUpper(label), strings.ToUpper(field))
		if len(suffix) != 2 {
			continue
		}
		i, j := int(suffix[0]-'1'), int(suffix[1]-'1')
		if i < 0 || i > 2 || j < 0 || j > 2 {
			continue
		}
		l.at[i][j], l.at[j][i] = col, col
		found++
	}
	if found == 0 {
		return l, fmt.Errorf("field %s: no tensor components in %v", field, components)
	}
	l.planar = l.at[0][2] < 0 && l.at[1][2] < 0
	return l, nil
}

func (l tensorLayout) value(row []float64, i, j int) float64 {
	col := l.at[i][j]
	if col < 0 || col >= len(row) {
		return 0
	}
	v := row[col]
	if i != j {
		v *= l.shearFactor
	}
	return v
}

func (l tensorLayout) maxPrincipal(row []float64) (float64, error) {
	if l.planar {
		s11, s22, s12 := l.value(row, 0, 0), l.value(row, 1, 1), l.value(row, 0, 1)
		c := (s11 + s22) / 2
		r := math.Hypot((s11-s22)/2, s12)
		p := c + r
		if l.at[2][2] >= 0 {
			p = math.Max(p, l.value(row, 2, 2))
		}
		return p, nil
	}

	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[3*i+j] = l.value(row, i, j)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(3, data), false); !ok {
		return 0, fmt.Errorf("eigen decomposition did not converge")
	}
	vals := eig.Values(nil)
	return vals[len(vals)-1], nil
}

// MaxPrincipal returns the largest eigenvalue of the symmetric tensor held
// in each row. In-plane tensors use the closed form; full 3D tensors use a
// symmetric eigensolver.
func MaxPrincipal(field string, components []string, rows [][]float64) ([]float64, error) {
	layout, err := newTensorLayout(field, components)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		if out[i], err = layout.maxPrincipal(row); err != nil {
			return nil, fmt.Errorf("field %s row %d: %w", field, i, err)
		}
	}
	return out, nil
}

// appendColumn returns rows with col appended as the last column
func appendColumn(rows [][]float64, col []float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		r := make([]float64, len(row)+1)
		copy(r, row)
		r[len(row)] = col[i]
		out[i] = r
	}
	return out
}
