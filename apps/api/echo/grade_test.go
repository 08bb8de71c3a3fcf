package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/user"
	reportsvc "github.com/tkceria/ceria/services/report"
	"github.com/tkceria/ceria/testutil"
)

func cellsBody(t *testing.T, cells ...edit.CellInput) []byte {
	return marshalObj(t, cellsRequest{Cells: cells})
}

func sheetValues(sheet edit.Sheet) map[string]string {
	values := make(map[string]string, len(sheet.Rows))
	for _, row := range sheet.Rows {
		values[row.Label] = row.Value
	}
	return values
}

func Test_gradeAPI_session(t *testing.T) {
	f := setup(t)
	cls := testutil.CreateClass(t, f.studentRepo, "Melati", f.teacher.ID)
	dina := testutil.CreateStudent(t, f.studentRepo, "1001", "Dina", cls.ID, f.parent.ID)
	eko := testutil.CreateStudent(t, f.studentRepo, "1002", "Eko", cls.ID, "")
	sem := testutil.CreateSemester(t, f.gradeRepo, "Semester 1")
	asp := testutil.CreateAspect(t, f.gradeRepo, "Nilai Agama dan Moral", 1)

	teacherToken := getToken(t, f, f.teacher)
	open := marshalObj(t, grade.OpenRequest{ClassID: cls.ID, SemesterID: sem.ID, AspectID: asp.ID})

	rec := f.do(http.MethodPost, "/v1/grade-sessions", teacherToken, open)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sheet edit.Sheet
	decode(t, rec, &sheet)
	require.NotEmpty(t, sheet.SessionID)
	assert.Equal(t, grade.Kind, sheet.Kind)
	assert.Equal(t, map[string]string{"Dina": "", "Eko": ""}, sheetValues(sheet))
	sessionPath := "/v1/grade-sessions/" + sheet.SessionID

	// a blank on a cell without record stays pending but is never written
	rec = f.do(http.MethodPut, sessionPath+"/cells", teacherToken, cellsBody(t,
		edit.CellInput{SubjectID: dina.ID, Value: "Great progress"},
		edit.CellInput{SubjectID: eko.ID, Value: "  "},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &sheet)
	assert.Equal(t, 2, sheet.PendingCount)

	rec = f.do(http.MethodPost, sessionPath+"/save", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved saveResponse
	decode(t, rec, &saved)
	assert.Equal(t, 1, saved.Succeeded)
	assert.Equal(t, 0, saved.Failed)
	assert.Equal(t, 1, saved.Inserted)
	assert.Len(t, saved.Skipped, 1)
	assert.Empty(t, saved.FailedKeys)
	assert.Empty(t, saved.Warning)
	assert.Equal(t, 0, saved.Sheet.PendingCount)
	assert.Equal(t, "Great progress", sheetValues(saved.Sheet)["Dina"])

	// update the persisted grade
	rec = f.do(http.MethodPut, sessionPath+"/cells", teacherToken, cellsBody(t,
		edit.CellInput{SubjectID: dina.ID, Value: "Shows improvement"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, sessionPath+"/save", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &saved)
	assert.Equal(t, 1, saved.Updated)
	assert.Equal(t, 0, saved.Inserted)

	// nothing pending
	rec = f.do(http.MethodPost, sessionPath+"/save", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &saved)
	assert.Equal(t, 0, saved.Succeeded)
	assert.Equal(t, 0, saved.Failed)

	// the persisted value shows up in a new session
	rec = f.do(http.MethodPost, "/v1/grade-sessions", teacherToken, open)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &sheet)
	assert.Equal(t, "Shows improvement", sheetValues(sheet)["Dina"])

	otherTeacher := testutil.CreateUser(t, f.usrRepo, "Bu Ani", "ani", "ani@ceria.sch.id", "", user.RoleTeacher, true)
	runHTTPTests(t, f, []httpTest{
		{
			name: "unknown subject", method: http.MethodPut, path: sessionPath + "/cells", token: teacherToken,
			body:     cellsBody(t, edit.CellInput{SubjectID: "nope", Value: "x"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: edit.ErrUnknownSubject.Error()}),
		},
		{
			name: "missing subject id", method: http.MethodPut, path: sessionPath + "/cells", token: teacherToken,
			body:     []byte(`{"cells":[{"value":"x"}]}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "session of another teacher", path: sessionPath, token: getToken(t, f, otherTeacher),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: edit.ErrSessionNotFound.Error()}),
		},
		{
			name: "class of another teacher", method: http.MethodPost, path: "/v1/grade-sessions", token: getToken(t, f, otherTeacher),
			body: open, wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "parents cannot grade", method: http.MethodPost, path: "/v1/grade-sessions", token: getToken(t, f, f.parent),
			body: open, wantCode: http.StatusForbidden,
		},
		{
			name: "unknown aspect", method: http.MethodPost, path: "/v1/grade-sessions", token: teacherToken,
			body:     marshalObj(t, grade.OpenRequest{ClassID: cls.ID, SemesterID: sem.ID, AspectID: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"aspect_id": grade.ErrAspectNotFound.Error()}),
		},
		{name: "close", method: http.MethodDelete, path: sessionPath, token: teacherToken, wantCode: http.StatusNoContent},
		{name: "closed", path: sessionPath, token: teacherToken, wantCode: http.StatusNotFound},
	})
}

func Test_gradeAPI_report(t *testing.T) {
	f := setup(t)
	cls := testutil.CreateClass(t, f.studentRepo, "Melati", f.teacher.ID)
	dina := testutil.CreateStudent(t, f.studentRepo, "1001", "Dina", cls.ID, f.parent.ID)
	testutil.CreateStudent(t, f.studentRepo, "1002", "Eko", cls.ID, "")
	sem := testutil.CreateSemester(t, f.gradeRepo, "Semester 1")
	asp := testutil.CreateAspect(t, f.gradeRepo, "Fisik Motorik", 1, "Motorik Kasar", "Motorik Halus")

	teacherToken := getToken(t, f, f.teacher)
	rec := f.do(http.MethodPost, "/v1/grade-sessions", teacherToken, marshalObj(t, grade.OpenRequest{
		ClassID: cls.ID, SemesterID: sem.ID, AspectID: asp.ID, SubAspectID: asp.SubAspects[1].ID,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sheet edit.Sheet
	decode(t, rec, &sheet)
	sessionPath := "/v1/grade-sessions/" + sheet.SessionID
	rec = f.do(http.MethodPut, sessionPath+"/cells", teacherToken, cellsBody(t,
		edit.CellInput{SubjectID: dina.ID, Value: "Menggunting dengan rapi"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, sessionPath+"/save", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("json", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/classes/"+cls.ID+"/grades?semester_id="+sem.ID, teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report grade.Report
		decode(t, rec, &report)
		require.Len(t, report.Columns, 3)
		require.Len(t, report.Rows, 2)
		assert.Equal(t, "Dina", report.Rows[0].StudentName)
		assert.Equal(t, []string{"", "", "Menggunting dengan rapi"}, report.Rows[0].Values)
		assert.Equal(t, []string{"", "", ""}, report.Rows[1].Values)
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/classes/"+cls.ID+"/grades/export?semester_id="+sem.ID, teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, reportsvc.ContentType, rec.Header().Get("Content-Type"))
		xf, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		rows, err := xf.GetRows("Nilai")
		require.NoError(t, err)
		var found bool
		for _, row := range rows {
			for _, c := range row {
				if c == "Menggunting dengan rapi" {
					found = true
				}
			}
		}
		assert.True(t, found)
	})

	t.Run("student grades", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students/"+dina.ID+"/grades?semester_id="+sem.ID, getToken(t, f, f.parent))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var grades []grade.Grade
		decode(t, rec, &grades)
		require.Len(t, grades, 1)
		assert.Equal(t, "Menggunting dengan rapi", grades[0].Description)
	})

	runHTTPTests(t, f, []httpTest{
		{name: "semester required", path: "/v1/classes/" + cls.ID + "/grades", token: teacherToken, wantCode: http.StatusBadRequest},
		{name: "parents cannot read class report", path: "/v1/classes/" + cls.ID + "/grades?semester_id=" + sem.ID, token: getToken(t, f, f.parent), wantCode: http.StatusForbidden},
		{name: "unknown semester", path: "/v1/classes/" + cls.ID + "/grades?semester_id=nope", token: teacherToken, wantCode: http.StatusNotFound},
	})
}

func Test_gradeAPI_catalog(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)

	rec := f.do(http.MethodPost, "/v1/semesters", adminToken, marshalObj(t, grade.NewSemester{
		Name: "Semester 1", AcademicYear: "2024/2025", StartsOn: "2024-07-15", EndsOn: "2024-12-20",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/v1/semesters", adminToken, marshalObj(t, grade.NewSemester{
		Name: "Semester 2", AcademicYear: "2024/2025", StartsOn: "2025-06-15", EndsOn: "2025-01-06",
	}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshalObj(t, map[string]string{"ends_on": "ends_on must be after starts_on"}),
	}, rec)

	rec = f.do(http.MethodPost, "/v1/aspects", adminToken, marshalObj(t, grade.NewAspect{Name: "Kognitif", Position: 2}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asp grade.Aspect
	decode(t, rec, &asp)

	rec = f.do(http.MethodPost, "/v1/aspects/"+asp.ID+"/sub-aspects", adminToken, marshalObj(t, grade.NewAspect{Name: "Berpikir Logis"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/aspects", getToken(t, f, f.teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	var aspects []grade.Aspect
	decode(t, rec, &aspects)
	require.Len(t, aspects, 1)
	require.Len(t, aspects[0].SubAspects, 1)
	assert.Equal(t, "Berpikir Logis", aspects[0].SubAspects[0].Name)

	rec = f.do(http.MethodGet, "/v1/semesters", getToken(t, f, f.parent))
	require.Equal(t, http.StatusOK, rec.Code)
	var sems []grade.Semester
	decode(t, rec, &sems)
	assert.Len(t, sems, 1)

	rec = f.do(http.MethodPost, "/v1/aspects", getToken(t, f, f.teacher), marshalObj(t, grade.NewAspect{Name: "Seni"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
