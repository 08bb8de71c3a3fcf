// Package reportsvc reads and writes spreadsheets.
package reportsvc

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/student"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	gradeSheet = "Nilai"
)

var (
	ErrNoSheet       = errors.New("the spreadsheet has no sheet")
	ErrMissingHeader = errors.New("the spreadsheet needs nis, name and gender columns")

	// StudentColumns are the headers of a student import sheet; extra columns are ignored.
	StudentColumns = []string{"nis", "name", "gender", "birth_date", "parent_id"}
)

// ExportGrades writes the semester report of a class as an XLSX workbook.
func ExportGrades(w io.Writer, report grade.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", gradeSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	title := report.ClassName + " - " + report.Semester.Name + " (" + report.AcademicYear + ")"
	if err := f.SetCellValue(gradeSheet, "A1", title); err != nil {
		return errors.Wrap(err, "writing title")
	}

	header := []interface{}{"NIS", "Nama"}
	for _, col := range report.Columns {
		header = append(header, col.Title)
	}
	if err := f.SetSheetRow(gradeSheet, "A3", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating style")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err = f.SetCellStyle(gradeSheet, "A1", lastCol+"3", bold); err != nil {
		return errors.Wrap(err, "styling header")
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return errors.Wrap(err, "creating style")
	}

	for i, row := range report.Rows {
		values := []interface{}{row.NIS, row.StudentName}
		for _, v := range row.Values {
			values = append(values, v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+4)
		if err = f.SetSheetRow(gradeSheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+4)
		}
	}
	if len(report.Rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), len(report.Rows)+3)
		if err = f.SetCellStyle(gradeSheet, "C4", last, wrap); err != nil {
			return errors.Wrap(err, "styling grades")
		}
	}
	if err = f.SetColWidth(gradeSheet, "B", "B", 30); err != nil {
		return errors.Wrap(err, "sizing columns")
	}
	if len(header) > 2 {
		if err = f.SetColWidth(gradeSheet, "C", lastCol, 40); err != nil {
			return errors.Wrap(err, "sizing columns")
		}
	}

	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ParseStudents reads the first sheet of an XLSX student import.
// The first row holds the headers (see StudentColumns, case-insensitive); rows[i] is spreadsheet row i+2.
// Blank rows are kept as zero values, trailing ones are dropped.
func ParseStudents(r io.Reader) ([]student.NewStudent, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening spreadsheet")
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", sheet)
	}
	if len(rows) == 0 {
		return nil, ErrMissingHeader
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range StudentColumns[:3] {
		if _, ok := cols[required]; !ok {
			return nil, ErrMissingHeader
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	students := make([]student.NewStudent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ns := student.NewStudent{
			NIS:       cell(row, "nis"),
			Name:      cell(row, "name"),
			Gender:    cell(row, "gender"),
			BirthDate: cell(row, "birth_date"),
			ParentID:  cell(row, "parent_id"),
		}
		students = append(students, ns)
	}
	return trimTrailingBlank(students), nil
}

func trimTrailingBlank(students []student.NewStudent) []student.NewStudent {
	for len(students) > 0 {
		last := students[len(students)-1]
		if last != (student.NewStudent{}) {
			break
		}
		students = students[:len(students)-1]
	}
	return students
}

// StudentTemplate writes an empty student import workbook.
func StudentTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header := make([]interface{}, 0, len(StudentColumns))
	for _, c := range StudentColumns {
		header = append(header, c)
	}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// Buffer runs write into a new buffer.
func Buffer(write func(io.Writer) error) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
