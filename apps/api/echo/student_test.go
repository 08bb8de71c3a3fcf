package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
	reportsvc "github.com/tkceria/ceria/services/report"
	"github.com/tkceria/ceria/testutil"
)

func studentIDs(students []student.Student) []string {
	return student.IDs(students)
}

func Test_studentAPI_scoping(t *testing.T) {
	f := setup(t)
	otherTeacher := testutil.CreateUser(t, f.usrRepo, "Bu Ani", "ani", "ani@ceria.sch.id", "", user.RoleTeacher, true)
	otherParent := testutil.CreateUser(t, f.usrRepo, "Bu Tuti", "tuti", "tuti@example.com", "", user.RoleParent, true)

	melati := testutil.CreateClass(t, f.studentRepo, "Melati", f.teacher.ID)
	mawar := testutil.CreateClass(t, f.studentRepo, "Mawar", otherTeacher.ID)
	dina := testutil.CreateStudent(t, f.studentRepo, "1001", "Dina", melati.ID, f.parent.ID)
	eko := testutil.CreateStudent(t, f.studentRepo, "1002", "Eko", melati.ID, otherParent.ID)
	fajar := testutil.CreateStudent(t, f.studentRepo, "1003", "Fajar", mawar.ID, otherParent.ID)

	adminToken := getToken(t, f, f.admin)
	teacherToken := getToken(t, f, f.teacher)
	parentToken := getToken(t, f, f.parent)

	t.Run("classes", func(t *testing.T) {
		tests := []struct {
			name  string
			token string
			want  []string
		}{
			{name: "admin", token: adminToken, want: []string{melati.ID, mawar.ID}},
			{name: "teacher", token: teacherToken, want: []string{melati.ID}},
			{name: "parent", token: parentToken, want: []string{melati.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodGet, "/v1/classes", tt.token)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var classes []student.Class
				decode(t, rec, &classes)
				got := make([]string, 0, len(classes))
				for _, cls := range classes {
					got = append(got, cls.ID)
				}
				assert.ElementsMatch(t, tt.want, got)
			})
		}
	})

	t.Run("students", func(t *testing.T) {
		tests := []struct {
			name  string
			path  string
			token string
			want  []string
		}{
			{name: "admin", path: "/v1/students", token: adminToken, want: []string{dina.ID, eko.ID, fajar.ID}},
			{name: "teacher", path: "/v1/students", token: teacherToken, want: []string{dina.ID, eko.ID}},
			{name: "teacher asking another class", path: "/v1/students?class_id=" + mawar.ID, token: teacherToken, want: []string{}},
			{name: "parent", path: "/v1/students", token: parentToken, want: []string{dina.ID}},
			{name: "parent cannot widen", path: "/v1/students?parent_id=" + otherParent.ID, token: parentToken, want: []string{dina.ID}},
			{name: "class students", path: "/v1/classes/" + melati.ID + "/students", token: teacherToken, want: []string{dina.ID, eko.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodGet, tt.path, tt.token)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var students []student.Student
				decode(t, rec, &students)
				assert.ElementsMatch(t, tt.want, studentIDs(students))
			})
		}
	})

	notFound := marshalObj(t, httpErr{Error: student.ErrNotFound.Error()})
	classNotFound := marshalObj(t, httpErr{Error: student.ErrClassNotFound.Error()})
	runHTTPTests(t, f, []httpTest{
		{name: "parent reads own child", path: "/v1/students/" + dina.ID, token: parentToken, wantCode: http.StatusOK},
		{name: "parent reads other child", path: "/v1/students/" + eko.ID, token: parentToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "teacher reads other class student", path: "/v1/students/" + fajar.ID, token: teacherToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "teacher reads other class", path: "/v1/classes/" + mawar.ID, token: teacherToken, wantCode: http.StatusNotFound, wantData: classNotFound},
		{name: "teacher cannot create class", method: http.MethodPost, path: "/v1/classes", token: teacherToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "parent cannot delete student", method: http.MethodDelete, path: "/v1/students/" + dina.ID, token: parentToken, wantCode: http.StatusForbidden},
	})
}

func Test_studentAPI_crud(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)

	rec := f.do(http.MethodPost, "/v1/classes", adminToken, marshalObj(t, student.NewClass{
		Name: " Melati ", AcademicYear: "2024/2025", TeacherID: f.teacher.ID,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cls student.Class
	decode(t, rec, &cls)
	assert.Equal(t, "Melati", cls.Name)

	rec = f.do(http.MethodPost, "/v1/classes", adminToken, marshalObj(t, student.NewClass{
		Name: "Mawar", AcademicYear: "2024/2025", TeacherID: f.parent.ID,
	}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshalObj(t, map[string]string{"teacher_id": "user is not a teacher"}),
	}, rec)

	ns := student.NewStudent{NIS: "2001", Name: "Gita", Gender: "p", BirthDate: "2019-03-04", ClassID: cls.ID, ParentID: f.parent.ID}
	rec = f.do(http.MethodPost, "/v1/students", adminToken, marshalObj(t, ns))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st student.Student
	decode(t, rec, &st)
	assert.Equal(t, student.GenderFemale, st.Gender)

	rec = f.do(http.MethodPost, "/v1/students", adminToken, marshalObj(t, ns))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshalObj(t, map[string]string{"nis": student.ErrNISExists.Error()}),
	}, rec)

	ns.Name = "Gita Ayu"
	rec = f.do(http.MethodPut, "/v1/students/"+st.ID, adminToken, marshalObj(t, ns))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &st)
	assert.Equal(t, "Gita Ayu", st.Name)

	rec = f.do(http.MethodDelete, "/v1/students/"+st.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodDelete, "/v1/students/"+st.ID, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/v1/classes/"+cls.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodGet, "/v1/classes/"+cls.ID, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newUploadRequest(t *testing.T, path, token string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "siswa.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_studentAPI_import(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)
	cls := testutil.CreateClass(t, f.studentRepo, "Melati", f.teacher.ID)
	existing := testutil.CreateStudent(t, f.studentRepo, "3001", "Hana", "", "")

	t.Run("template", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students/import-template", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, reportsvc.ContentType, rec.Header().Get("Content-Type"))
		rows, err := reportsvc.ParseStudents(rec.Body)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	xf := excelize.NewFile()
	rows := [][]interface{}{
		{"NIS", "Name", "Gender", "Birth_Date", "parent_id"},
		{"3001", "Hana Putri", "P", "2019-01-02", ""},
		{"3002", "Indra", "L", "", f.parent.ID},
		{},
		{"3003", "", "L", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, xf.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := xf.WriteToBuffer()
	require.NoError(t, err)

	req, rec := newUploadRequest(t, "/v1/classes/"+cls.ID+"/students/import", adminToken, buf.Bytes())
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res student.ImportResult
	decode(t, rec, &res)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, map[int]string{5: "name: required"}, res.Errors)

	rec = f.do(http.MethodGet, "/v1/students/"+existing.ID, adminToken)
	var st student.Student
	decode(t, rec, &st)
	assert.Equal(t, "Hana Putri", st.Name)
	assert.Equal(t, cls.ID, st.ClassID.String)

	t.Run("not a spreadsheet", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/classes/"+cls.ID+"/students/import", adminToken, []byte("lol"))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"file": "invalid spreadsheet"}),
		}, rec)
	})
}
